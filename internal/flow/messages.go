package flow

import (
	"fmt"

	"github.com/themaden/copperx-telegram-bot/internal/domain"
)

const historyPageSize = 10

const (
	msgWelcome = "👋 *Welcome to Copperx Payout Bot!*\n\n" +
		"Manage your USDC wallets, send funds, and get deposit alerts right here in Telegram.\n\n" +
		"Log in with your Copperx account to get started."

	msgMainMenu = "What would you like to do?"

	msgAskEmail = "📧 Please enter your Copperx account email address:"

	msgInvalidEmail = "❌ That doesn't look like an email address. Please try again:"

	msgSessionExpired = "⏳ Your session expired. Please use /login to start again."

	msgNotLoggedIn = "🔒 You need to log in first."

	msgLoggedOut = "👋 You have been logged out. Use /login whenever you want to come back."

	msgCancelled = "✅ Cancelled. Anything else?"

	msgNothingToCancel = "There is nothing to cancel."

	msgNothingToConfirm = "There is no pending transaction to confirm. Use /send to start one."

	msgUseButtons = "Please use the buttons above to confirm or cancel."

	msgPickSendMethod = "📤 *Send Funds*\n\nHow would you like to send?"

	msgAskEmailRecipient = "📧 Enter the recipient's email address:"

	msgAskWalletAddress = "🔐 Enter the destination wallet address:"

	msgAskBankAccount = "🏦 Enter your bank account ID:"

	msgInvalidRecipientEmail = "❌ That doesn't look like an email address. Please try again:"

	msgInvalidWalletAddress = "❌ That address looks too short. Please check it and try again:"

	msgInvalidAmount = "❌ Please enter a positive number, e.g. 10 or 25.50:"

	msgPickDefaultWallet = "⭐ Pick your default wallet:"

	msgDefaultWalletSet = "✅ Default wallet updated."

	msgNoWallets = "You don't have any wallets yet."

	msgUnknownCommand = "🤔 I don't know that command. Try /help."

	msgGenericError = "❌ Something went wrong. Please try again."

	msgHelp = "ℹ️ *Available commands*\n\n" +
		"/balance — wallet balances\n" +
		"/wallets — your wallets\n" +
		"/setdefault — choose the default wallet\n" +
		"/send — send funds (email, wallet, or bank)\n" +
		"/history — recent transactions\n" +
		"/profile — account and KYC status\n" +
		"/login — sign in\n" +
		"/logout — sign out\n" +
		"/cancel — abort the current operation"
)

func msgWelcomeBack(user *domain.User) string {
	name := ""
	if user != nil && user.FirstName != "" {
		name = " " + mdSafe(user.FirstName)
	}
	return fmt.Sprintf("👋 Welcome back%s!\n\n%s", name, msgMainMenu)
}

func msgAskOTP(email string) string {
	return fmt.Sprintf("📬 We sent a one-time code to *%s*.\n\nEnter it here:", mdSafe(email))
}

func msgLoginSuccess(user *domain.User) string {
	name := user.FirstName
	if name == "" {
		name = user.Email
	}
	return fmt.Sprintf("✅ Logged in as *%s*.\n\n%s", mdSafe(name), msgMainMenu)
}

func msgAskAmount(currencyCode string) string {
	return fmt.Sprintf("💵 Enter the amount in %s:", currencyCode)
}

func msgRateLimited(waitSeconds int) string {
	return fmt.Sprintf("🚦 Too many requests. Please wait %d seconds and try again.", waitSeconds)
}

func msgOTPRequestFailed(err error) string {
	return fmt.Sprintf("❌ Failed to send the code: %s\n\nUse /login to try again.", apiMessage(err))
}

func msgOTPFailed(err error) string {
	return fmt.Sprintf("❌ Login failed: %s\n\nUse /login to try again.", apiMessage(err))
}

func msgFetchFailed(err error) string {
	return fmt.Sprintf("❌ Couldn't fetch that right now: %s", apiMessage(err))
}

func msgTransferFailed(err error) string {
	return fmt.Sprintf("❌ Transaction failed: %s\n\nUse /send to start over.", apiMessage(err))
}

func msgInvalidBankAccount(minLen int) string {
	return fmt.Sprintf("❌ A bank account ID must be at least %d characters. Please try again:", minLen)
}

func msgTransferDone(d *domain.TransferDraft, transferID string) string {
	text := fmt.Sprintf("✅ *Transaction submitted!*\n\nAmount: %s %s", d.Amount, d.CurrencyCode)
	if transferID != "" {
		text += fmt.Sprintf("\nReference: `%s`", transferID)
	}
	return text
}
