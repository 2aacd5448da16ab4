package safety

// policyProgram is the fixed Datalog rule set the controller loads once
// at construction. Per-decision facts name exactly one action, always
// identified by the constant actionID below, since the engine is reset
// between decisions rather than tracking many actions at once.
//
// The workspace-escape and protected-prefix checks themselves happen in
// Go (they need filepath.Clean/Abs semantics a Datalog program has no
// business doing); what the rules combine is two booleans Go has already
// computed into a single path_violation verdict, the same projected-fact
// style a simulated action's effects are turned into facts for
// evaluation elsewhere in this codebase.
const policyProgram = `
Decl is_write_action(ActionID) bound [/string].
Decl outside_workspace(ActionID) bound [/string].
Decl protected_path_hit(ActionID) bound [/string].
Decl path_violation(ActionID) bound [/string].

path_violation(ActionID) :- is_write_action(ActionID), outside_workspace(ActionID).
path_violation(ActionID) :- is_write_action(ActionID), protected_path_hit(ActionID).
`

// actionID is the constant action identifier asserted for every
// decision; see the policyProgram doc comment for why one suffices.
const actionID = "current"
