package theme

import "charm.land/lipgloss/v2"

// Styles contains the pre-built lipgloss styles for the TUI.
type Styles struct {
	HeaderTitle lipgloss.Style
	HeaderStep  lipgloss.Style

	UserBubble   lipgloss.Style
	SystemBubble lipgloss.Style
	ErrorBubble  lipgloss.Style
	Timestamp    lipgloss.Style

	Prompt         lipgloss.Style
	PromptFocused  lipgloss.Style
	PromptDisabled lipgloss.Style
	Hint           lipgloss.Style

	ModalTitle  lipgloss.Style
	ModalBorder lipgloss.Style
	Label       lipgloss.Style
	Value       lipgloss.Style
	ErrorText   lipgloss.Style
	SuccessText lipgloss.Style
}
