package config

// PortsConfig configures the local HTTP ports Archi's reference
// interfaces bind to.
type PortsConfig struct {
	Dashboard int `yaml:"dashboard" json:"dashboard"`
	WebChat   int `yaml:"web_chat" json:"web_chat"`
}
