package research

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"

	"archi/internal/logging"
	"archi/internal/tools"
)

// browserSession is one open page tracked by the shared manager.
type browserSession struct {
	ID     string
	URL    string
	Status string
	page   *rod.Page
}

// browserSessionManager owns a single headless rod.Browser instance and
// the pages opened against it, keyed by session ID. Archi runs one
// agent process at a time, so one shared browser is sufficient; this
// mirrors the teacher's pattern of a lazily-started singleton.
type browserSessionManager struct {
	mu       sync.Mutex
	browser  *rod.Browser
	sessions map[string]*browserSession
	started  bool
}

var (
	browserMgr     *browserSessionManager
	browserMgrOnce sync.Once
)

func getBrowserManager() *browserSessionManager {
	browserMgrOnce.Do(func() {
		browserMgr = &browserSessionManager{sessions: make(map[string]*browserSession)}
	})
	return browserMgr
}

func (m *browserSessionManager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return nil
	}
	url, err := launcher.New().Headless(true).Launch()
	if err != nil {
		return fmt.Errorf("launch headless browser: %w", err)
	}
	m.browser = rod.New().ControlURL(url).Context(ctx)
	if err := m.browser.Connect(); err != nil {
		return fmt.Errorf("connect to browser: %w", err)
	}
	m.started = true
	return nil
}

func (m *browserSessionManager) CreateSession(ctx context.Context, url string) (*browserSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	page, err := m.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait for page load: %w", err)
	}
	sess := &browserSession{ID: uuid.NewString(), URL: url, Status: "loaded", page: page}
	m.sessions[sess.ID] = sess
	return sess, nil
}

func (m *browserSessionManager) GetSession(id string) (*browserSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *browserSessionManager) Navigate(ctx context.Context, id, url string) error {
	s, ok := m.GetSession(id)
	if !ok {
		return fmt.Errorf("session not found: %s", id)
	}
	if err := s.page.Context(ctx).Navigate(url); err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	if err := s.page.WaitLoad(); err != nil {
		return fmt.Errorf("wait for page load: %w", err)
	}
	m.mu.Lock()
	s.URL = url
	s.Status = "loaded"
	m.mu.Unlock()
	return nil
}

func (m *browserSessionManager) Screenshot(ctx context.Context, id string, fullPage bool) ([]byte, error) {
	s, ok := m.GetSession(id)
	if !ok {
		return nil, fmt.Errorf("session not found: %s", id)
	}
	opts := &proto.PageCaptureScreenshot{}
	if fullPage {
		opts.CaptureBeyondViewport = true
	}
	return s.page.Context(ctx).Screenshot(fullPage, opts)
}

func (m *browserSessionManager) Click(ctx context.Context, id, selector string) error {
	s, ok := m.GetSession(id)
	if !ok {
		return fmt.Errorf("session not found: %s", id)
	}
	el, err := s.page.Context(ctx).Element(selector)
	if err != nil {
		return fmt.Errorf("element not found: %s", selector)
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (m *browserSessionManager) Type(ctx context.Context, id, selector, text string) error {
	s, ok := m.GetSession(id)
	if !ok {
		return fmt.Errorf("session not found: %s", id)
	}
	el, err := s.page.Context(ctx).Element(selector)
	if err != nil {
		return fmt.Errorf("element not found: %s", selector)
	}
	return el.Input(text)
}

// BrowserNavigateTool returns a tool for navigating to a URL with a browser.
func BrowserNavigateTool() *tools.Tool {
	return &tools.Tool{
		Name:        "browser_navigate",
		Description: "Navigate to a URL using a headless browser, useful for JavaScript-rendered pages",
		Category:    tools.CategoryResearch,
		Priority:    60,
		Execute:     executeBrowserNavigate,
		Schema: tools.ToolSchema{
			Required: []string{"url"},
			Properties: map[string]tools.Property{
				"url": {
					Type:        "string",
					Description: "The URL to navigate to",
				},
				"session_id": {
					Type:        "string",
					Description: "Optional session ID to reuse an existing browser session",
				},
			},
		},
	}
}

func executeBrowserNavigate(ctx context.Context, args map[string]any) (string, error) {
	url, _ := args["url"].(string)
	if url == "" {
		return "", fmt.Errorf("url is required")
	}
	sessionID, _ := args["session_id"].(string)

	logging.ToolsDebug("browser navigate: url=%s session=%s", url, sessionID)

	mgr := getBrowserManager()
	if err := mgr.Start(ctx); err != nil {
		return "", fmt.Errorf("start browser: %w", err)
	}

	var sess *browserSession
	var err error
	if sessionID != "" {
		if err = mgr.Navigate(ctx, sessionID, url); err != nil {
			return "", err
		}
		sess, _ = mgr.GetSession(sessionID)
	} else {
		sess, err = mgr.CreateSession(ctx, url)
		if err != nil {
			return "", err
		}
	}

	logging.Tools("browser navigated to %s (session=%s)", url, sess.ID)
	return fmt.Sprintf("Successfully navigated to %s\nSession ID: %s\nStatus: %s", url, sess.ID, sess.Status), nil
}

// BrowserExtractTool returns a tool for extracting content from a browser page.
func BrowserExtractTool() *tools.Tool {
	return &tools.Tool{
		Name:        "browser_extract",
		Description: "Extract text content from the current browser page",
		Category:    tools.CategoryResearch,
		Priority:    55,
		Execute:     executeBrowserExtract,
		Schema: tools.ToolSchema{
			Required: []string{"session_id"},
			Properties: map[string]tools.Property{
				"session_id": {Type: "string", Description: "The browser session ID"},
				"selector":   {Type: "string", Description: "CSS selector to extract (default: body)", Default: "body"},
			},
		},
	}
}

func executeBrowserExtract(ctx context.Context, args map[string]any) (string, error) {
	sessionID, _ := args["session_id"].(string)
	if sessionID == "" {
		return "", fmt.Errorf("session_id is required")
	}
	selector := "body"
	if sel, ok := args["selector"].(string); ok && sel != "" {
		selector = sel
	}

	logging.ToolsDebug("browser extract: session=%s selector=%s", sessionID, selector)

	mgr := getBrowserManager()
	sess, ok := mgr.GetSession(sessionID)
	if !ok {
		return "", fmt.Errorf("session not found: %s", sessionID)
	}
	el, err := sess.page.Context(ctx).Element(selector)
	if err != nil {
		return "", fmt.Errorf("element not found: %s", selector)
	}
	text, err := el.Text()
	if err != nil {
		return "", fmt.Errorf("get text: %w", err)
	}

	logging.Tools("browser extract completed: %d chars", len(text))
	return text, nil
}

// BrowserScreenshotTool returns a tool for capturing screenshots.
func BrowserScreenshotTool() *tools.Tool {
	return &tools.Tool{
		Name:        "browser_screenshot",
		Description: "Capture a screenshot of the current browser page",
		Category:    tools.CategoryResearch,
		Priority:    50,
		Execute:     executeBrowserScreenshot,
		Schema: tools.ToolSchema{
			Required: []string{"session_id"},
			Properties: map[string]tools.Property{
				"session_id": {Type: "string", Description: "The browser session ID"},
				"full_page":  {Type: "boolean", Description: "Capture full page or just viewport", Default: false},
			},
		},
	}
}

func executeBrowserScreenshot(ctx context.Context, args map[string]any) (string, error) {
	sessionID, _ := args["session_id"].(string)
	if sessionID == "" {
		return "", fmt.Errorf("session_id is required")
	}
	fullPage, _ := args["full_page"].(bool)

	logging.ToolsDebug("browser screenshot: session=%s full_page=%v", sessionID, fullPage)

	mgr := getBrowserManager()
	data, err := mgr.Screenshot(ctx, sessionID, fullPage)
	if err != nil {
		return "", fmt.Errorf("capture screenshot: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(data)

	logging.Tools("browser screenshot captured: %d bytes", len(data))
	return fmt.Sprintf("data:image/png;base64,%s", encoded), nil
}

// BrowserClickTool returns a tool for clicking elements.
func BrowserClickTool() *tools.Tool {
	return &tools.Tool{
		Name:        "browser_click",
		Description: "Click an element on the page",
		Category:    tools.CategoryResearch,
		Priority:    50,
		Execute:     executeBrowserClick,
		Schema: tools.ToolSchema{
			Required: []string{"session_id", "selector"},
			Properties: map[string]tools.Property{
				"session_id": {Type: "string", Description: "The browser session ID"},
				"selector":   {Type: "string", Description: "CSS selector for the element to click"},
			},
		},
	}
}

func executeBrowserClick(ctx context.Context, args map[string]any) (string, error) {
	sessionID, _ := args["session_id"].(string)
	selector, _ := args["selector"].(string)
	if sessionID == "" || selector == "" {
		return "", fmt.Errorf("session_id and selector are required")
	}

	logging.ToolsDebug("browser click: session=%s selector=%s", sessionID, selector)

	mgr := getBrowserManager()
	if err := mgr.Click(ctx, sessionID, selector); err != nil {
		return "", fmt.Errorf("click: %w", err)
	}

	logging.Tools("browser clicked: %s", selector)
	return fmt.Sprintf("Clicked element: %s", selector), nil
}

// BrowserTypeTool returns a tool for typing into input fields.
func BrowserTypeTool() *tools.Tool {
	return &tools.Tool{
		Name:        "browser_type",
		Description: "Type text into an input field",
		Category:    tools.CategoryResearch,
		Priority:    50,
		Execute:     executeBrowserType,
		Schema: tools.ToolSchema{
			Required: []string{"session_id", "selector", "text"},
			Properties: map[string]tools.Property{
				"session_id": {Type: "string", Description: "The browser session ID"},
				"selector":   {Type: "string", Description: "CSS selector for the input element"},
				"text":       {Type: "string", Description: "Text to type"},
			},
		},
	}
}

func executeBrowserType(ctx context.Context, args map[string]any) (string, error) {
	sessionID, _ := args["session_id"].(string)
	selector, _ := args["selector"].(string)
	text, _ := args["text"].(string)
	if sessionID == "" || selector == "" || text == "" {
		return "", fmt.Errorf("session_id, selector and text are required")
	}

	logging.ToolsDebug("browser type: session=%s selector=%s text_len=%d", sessionID, selector, len(text))

	mgr := getBrowserManager()
	if err := mgr.Type(ctx, sessionID, selector, text); err != nil {
		return "", fmt.Errorf("type: %w", err)
	}

	logging.Tools("browser typed %d chars into %s", len(text), selector)
	return fmt.Sprintf("Typed %d characters into: %s", len(text), selector), nil
}

// BrowserCloseTool returns a tool for closing browser sessions.
func BrowserCloseTool() *tools.Tool {
	return &tools.Tool{
		Name:        "browser_close",
		Description: "Close a browser session",
		Category:    tools.CategoryResearch,
		Priority:    40,
		Execute:     executeBrowserClose,
		Schema: tools.ToolSchema{
			Required: []string{"session_id"},
			Properties: map[string]tools.Property{
				"session_id": {Type: "string", Description: "The browser session ID to close"},
			},
		},
	}
}

func executeBrowserClose(ctx context.Context, args map[string]any) (string, error) {
	sessionID, _ := args["session_id"].(string)
	if sessionID == "" {
		return "", fmt.Errorf("session_id is required")
	}

	mgr := getBrowserManager()
	mgr.mu.Lock()
	sess, ok := mgr.sessions[sessionID]
	if ok {
		sess.page.Close()
		delete(mgr.sessions, sessionID)
	}
	mgr.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("session not found: %s", sessionID)
	}

	logging.Tools("browser session closed: %s", sessionID)
	return fmt.Sprintf("Session %s closed", sessionID), nil
}
