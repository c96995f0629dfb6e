// Package domain declares the wallet API entities shared across services,
// the conversation machine, and the notification bridge.
package domain

// User is the authenticated account profile returned by the wallet API.
type User struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	OrganizationID string `json:"organizationId"`
	Role           string `json:"role"`
	Status         string `json:"status"`
}

// AuthResponse is the payload of a successful OTP authentication.
type AuthResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	User         User   `json:"user"`
}

// Wallet is a custodial wallet owned by the user's organization.
type Wallet struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Address      string `json:"address"`
	Network      string `json:"network"`
	IsDefault    bool   `json:"isDefault"`
	CurrencyCode string `json:"currencyCode"`
	CurrencyID   string `json:"currencyId"`
}

// Balance is a read-only snapshot of one wallet's funds.
type Balance struct {
	WalletID      string `json:"walletId"`
	WalletName    string `json:"walletName"`
	WalletAddress string `json:"walletAddress"`
	Network       string `json:"network"`
	CurrencyCode  string `json:"currencyCode"`
	CurrencyID    string `json:"currencyId"`
	Balance       string `json:"balance"`
}

// Endpoint names one side of a transaction.
type Endpoint struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

// Transaction is a historical transfer record, read-only and paginated.
type Transaction struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Status       string    `json:"status"`
	Amount       string    `json:"amount"`
	Fee          string    `json:"fee"`
	TotalAmount  string    `json:"totalAmount"`
	CurrencyCode string    `json:"currencyCode"`
	CreatedAt    string    `json:"createdAt"`
	From         *Endpoint `json:"from,omitempty"`
	To           *Endpoint `json:"to,omitempty"`
}

// KYC is one verification record attached to the account.
type KYC struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Type   string `json:"type"`
}

// DepositNotification is the payload of a realtime deposit event.
type DepositNotification struct {
	Amount       string `json:"amount"`
	Network      string `json:"network"`
	TxHash       string `json:"txHash"`
	CurrencyCode string `json:"currencyCode"`
	CreatedAt    string `json:"createdAt"`
}

// TransferKind selects which transfer submission path a draft uses.
type TransferKind string

const (
	// TransferEmail sends funds to an email recipient.
	TransferEmail TransferKind = "email"
	// TransferWallet withdraws funds to an external wallet address.
	TransferWallet TransferKind = "wallet"
	// TransferBank off-ramps funds to a bank account.
	TransferBank TransferKind = "bank"
)

// TransferDraft accumulates a transfer request across conversation steps.
// Kind is set when the user picks a send method; the remaining fields fill
// in one step at a time and the whole draft is discarded on cancel, on
// successful submission, or on any session reset.
type TransferDraft struct {
	Kind         TransferKind `json:"kind"`
	Recipient    string       `json:"recipient"`
	Network      string       `json:"network,omitempty"`
	CurrencyID   string       `json:"currencyId,omitempty"`
	CurrencyCode string       `json:"currencyCode,omitempty"`
	Amount       string       `json:"amount,omitempty"`
}
