// Package components holds the console's reusable bubbletea widgets.
package components

// FormSubmittedMsg is emitted when the operator submits the generation form.
type FormSubmittedMsg struct{}

// IdentityChangedMsg is emitted when the email or its aliasing flag changes.
type IdentityChangedMsg struct {
	Email     string
	Aliasable bool
}

// IdentityBlurredMsg is emitted when focus leaves the email field.
type IdentityBlurredMsg struct{}

// PromptSubmittedMsg carries the values entered into a prompt.
type PromptSubmittedMsg struct {
	ID     string
	Values []string
}

// PromptCancelledMsg is emitted when a prompt is dismissed.
type PromptCancelledMsg struct {
	ID string
}
