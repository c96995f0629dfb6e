package flow

// Command names, without the leading slash.
const (
	CmdStart      = "start"
	CmdLogin      = "login"
	CmdLogout     = "logout"
	CmdCancel     = "cancel"
	CmdBalance    = "balance"
	CmdWallets    = "wallets"
	CmdSetDefault = "setdefault"
	CmdSend       = "send"
	CmdHistory    = "history"
	CmdProfile    = "profile"
	CmdHelp       = "help"
)

// Inline button action keys.
const (
	ActionLogin        = "login"
	ActionSendEmail    = "send_email"
	ActionSendWallet   = "send_wallet"
	ActionWithdrawBank = "withdraw_bank"
	ActionSetDefault   = "setdefault"
	ActionConfirm      = "confirm_transaction"
	ActionCancel       = "cancel_transaction"
	ActionBackToMain   = "back_to_main"
)

// Main menu reply keyboard labels, routed back into commands when typed or
// tapped.
const (
	MenuBalance = "💰 Balance"
	MenuWallets = "💼 Wallets"
	MenuSend    = "📤 Send"
	MenuHistory = "📜 History"
	MenuProfile = "👤 Profile"
	MenuHelp    = "❓ Help"
	MenuLogout  = "🚪 Logout"
)

var menuCommands = map[string]string{
	MenuBalance: CmdBalance,
	MenuWallets: CmdWallets,
	MenuSend:    CmdSend,
	MenuHistory: CmdHistory,
	MenuProfile: CmdProfile,
	MenuHelp:    CmdHelp,
	MenuLogout:  CmdLogout,
}

// MenuRows is the reply keyboard layout shown to authenticated users.
func MenuRows() [][]string {
	return [][]string{
		{MenuBalance, MenuWallets},
		{MenuSend, MenuHistory},
		{MenuProfile, MenuHelp},
		{MenuLogout},
	}
}

func menuCommand(text string) (string, bool) {
	command, ok := menuCommands[text]
	return command, ok
}
