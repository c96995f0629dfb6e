package flow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/themaden/copperx-telegram-bot/core/telegram/format"
	"github.com/themaden/copperx-telegram-bot/internal/api"
	"github.com/themaden/copperx-telegram-bot/internal/domain"
)

// mdSafe escapes user-supplied values interpolated into Markdown messages.
func mdSafe(s string) string {
	escaped, err := format.EscapeMarkdown(s, format.MarkdownV1, "")
	if err != nil {
		return s
	}
	return escaped
}

// apiMessage extracts the user-presentable message from a gateway failure.
// Raw error strings never reach the chat.
func apiMessage(err error) string {
	var failure *api.Failure
	if errors.As(err, &failure) && failure.Message != "" {
		return failure.Message
	}
	return "an unexpected error occurred"
}

// truncateAddress shortens long wallet addresses to head…tail for display.
func truncateAddress(addr string) string {
	if len(addr) <= 16 {
		return addr
	}
	return addr[:8] + "..." + addr[len(addr)-6:]
}

func formatBalances(balances []domain.Balance) string {
	if len(balances) == 0 {
		return "💰 No balances yet. Deposit funds to get started."
	}
	var b strings.Builder
	b.WriteString("💰 *Your Balances*\n")
	for _, bal := range balances {
		fmt.Fprintf(&b, "\n*%s* (%s)\n", bal.Network, bal.CurrencyCode)
		fmt.Fprintf(&b, "`%s`\n", truncateAddress(bal.WalletAddress))
		fmt.Fprintf(&b, "Balance: *%s %s*\n", bal.Balance, bal.CurrencyCode)
	}
	return b.String()
}

func formatWallets(wallets []domain.Wallet) string {
	if len(wallets) == 0 {
		return "💼 You don't have any wallets yet."
	}
	var b strings.Builder
	b.WriteString("💼 *Your Wallets*\n")
	for _, w := range wallets {
		marker := ""
		if w.IsDefault {
			marker = " ⭐ default"
		}
		fmt.Fprintf(&b, "\n*%s*%s\n", w.Network, marker)
		fmt.Fprintf(&b, "`%s`\n", w.Address)
	}
	b.WriteString("\nUse /setdefault to change your default wallet.")
	return b.String()
}

func formatHistory(transactions []domain.Transaction, total int) string {
	if len(transactions) == 0 {
		return "📜 No transactions yet."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📜 *Recent Transactions* (%d total)\n", total)
	for _, tx := range transactions {
		fmt.Fprintf(&b, "\n%s *%s* — %s %s\n", statusEmoji(tx.Status), strings.ToUpper(tx.Type), tx.Amount, tx.CurrencyCode)
		if tx.To != nil && tx.To.Address != "" {
			fmt.Fprintf(&b, "To: `%s`\n", truncateAddress(tx.To.Address))
		}
		if tx.CreatedAt != "" {
			fmt.Fprintf(&b, "%s\n", tx.CreatedAt)
		}
	}
	return b.String()
}

func formatProfile(user *domain.User, kycs []domain.KYC) string {
	var b strings.Builder
	b.WriteString("👤 *Your Profile*\n\n")
	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if name != "" {
		fmt.Fprintf(&b, "Name: %s\n", mdSafe(name))
	}
	fmt.Fprintf(&b, "Email: %s\n", mdSafe(user.Email))
	if user.Role != "" {
		fmt.Fprintf(&b, "Role: %s\n", user.Role)
	}
	if user.Status != "" {
		fmt.Fprintf(&b, "Status: %s\n", user.Status)
	}

	if len(kycs) == 0 {
		b.WriteString("\nKYC: not started")
		return b.String()
	}
	b.WriteString("\n*KYC*\n")
	for _, k := range kycs {
		fmt.Fprintf(&b, "%s %s: %s\n", statusEmoji(k.Status), k.Type, k.Status)
	}
	return b.String()
}

func formatDeposit(dep domain.DepositNotification) string {
	var b strings.Builder
	b.WriteString("💰 *New Deposit Received!*\n\n")
	fmt.Fprintf(&b, "Amount: *%s %s*\n", dep.Amount, dep.CurrencyCode)
	if dep.Network != "" {
		fmt.Fprintf(&b, "Network: %s\n", dep.Network)
	}
	if dep.TxHash != "" {
		fmt.Fprintf(&b, "Tx: `%s`\n", truncateAddress(dep.TxHash))
	}
	return b.String()
}

func statusEmoji(status string) string {
	switch strings.ToLower(status) {
	case "success", "completed", "approved", "verified":
		return "✅"
	case "pending", "processing", "initiated":
		return "⏳"
	case "failed", "rejected", "canceled", "cancelled":
		return "❌"
	default:
		return "•"
	}
}
