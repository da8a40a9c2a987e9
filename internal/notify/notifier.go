// Package notify formats and delivers human-readable status messages to the
// conversation transport. It carries no business logic; a failed delivery is
// always reported to the caller.
package notify

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/Ashar20/Trader-daddy/internal/chains"
	"github.com/Ashar20/Trader-daddy/internal/chat"
	"github.com/Ashar20/Trader-daddy/internal/walletconnect"
	apperrors "github.com/Ashar20/Trader-daddy/pkg/errors"
)

// Notifier sends formatted messages to conversations.
type Notifier struct {
	transport chat.Transport
}

// New creates a Notifier over the given transport.
func New(transport chat.Transport) *Notifier {
	return &Notifier{transport: transport}
}

// Prompt sends an approval prompt and returns the message ID used as the
// correlation key for the decision reaction.
func (n *Notifier) Prompt(ctx context.Context, conversationID, summary string) (string, error) {
	messageID, err := n.transport.SendMessage(ctx, conversationID, summary)
	if err != nil {
		return "", apperrors.NotifierUnavailable(err.Error())
	}
	return messageID, nil
}

// Inform sends an informational message.
func (n *Notifier) Inform(ctx context.Context, conversationID, text string) error {
	if _, err := n.transport.SendMessage(ctx, conversationID, text); err != nil {
		return apperrors.NotifierUnavailable(err.Error())
	}
	return nil
}

// PairingStarted is sent right after a pairing URI is accepted.
func PairingStarted() string {
	return "🔗 *WalletConnect Pairing*\n\nConnecting to dApp... Please wait."
}

// PairingFailed is sent when the pairing call itself fails.
func PairingFailed() string {
	return "Invalid WalletConnect URI. Please try again with a valid URI."
}

// SessionConnected confirms an approved session with peer metadata, the
// connected address and the supported network list.
func SessionConnected(peer walletconnect.Metadata, address string, supported []chains.Chain) string {
	var networks strings.Builder
	for _, chain := range supported {
		fmt.Fprintf(&networks, "• %s (%d)\n", chain.Name, chain.ID)
	}

	return "✅ *WalletConnect Connected Successfully*\n\n" +
		fmt.Sprintf("*App:* %s\n", peer.Name) +
		fmt.Sprintf("*URL:* %s\n", peer.URL) +
		fmt.Sprintf("*Description:* %s\n\n", peer.Description) +
		fmt.Sprintf("*Connected Address:* %s\n\n", address) +
		"*Supported Networks:*\n" + networks.String() + "\n" +
		"You can now interact with the dApp. Any transaction or signature requests will require your approval."
}

// SessionEnded is sent when the peer disconnects.
func SessionEnded() string {
	return "🔌 *WalletConnect Session Ended*\n\nThe dApp has disconnected from your wallet."
}

// ConnectionFailed is sent when a session proposal cannot be processed.
func ConnectionFailed(reason string) string {
	return "❌ *Error*\n\nFailed to process the connection request. " + reason
}

// TransactionPrompt renders the approval prompt for an eth_sendTransaction
// request.
func TransactionPrompt(tx *walletconnect.TransactionParams) string {
	value := new(big.Int)
	if tx.Value != nil {
		value.Set(tx.Value.ToInt())
	}

	hasData := "No"
	if len(tx.Data) > 0 {
		hasData = "Yes"
	}

	return "📝 *New Transaction Request*\n\n" +
		fmt.Sprintf("*To:* %s\n", tx.To) +
		fmt.Sprintf("*Value:* %s ETH\n", formatEther(value)) +
		fmt.Sprintf("*Data:* %s\n\n", hasData) +
		approvalFooter()
}

// SignaturePrompt renders the approval prompt for a signing request.
func SignaturePrompt(kind walletconnect.Kind) string {
	label := "Sign Typed Data"
	if kind == walletconnect.KindPersonalSign {
		label = "Personal Sign"
	}

	return "📝 *New Signature Request*\n\n" +
		fmt.Sprintf("*Type:* %s\n\n", label) +
		approvalFooter()
}

// TransactionSent confirms a broadcast transaction, with an explorer link
// when the chain has one.
func TransactionSent(chain chains.Chain, hash string) string {
	msg := "✅ *Transaction Sent*\n\n" +
		fmt.Sprintf("*Network:* %s\n", chain.Name) +
		fmt.Sprintf("*Transaction Hash:* `%s`\n", hash)
	if explorerURL := chain.ExplorerTxURL(hash); explorerURL != "" {
		msg += fmt.Sprintf("*View on Explorer:* %s\n", explorerURL)
	}
	return msg + "\nYour transaction has been signed and sent!"
}

// MessageSigned confirms a completed signature request.
func MessageSigned(chain chains.Chain, signature string) string {
	return "✅ *Message Signed*\n\n" +
		fmt.Sprintf("*Network:* %s\n", chain.Name) +
		fmt.Sprintf("*Signature:* `%s`\n\n", signature) +
		"Your message has been signed successfully!"
}

// RequestRejected confirms a user rejection.
func RequestRejected() string {
	return "❌ *Request Rejected*\n\nYou have rejected the request."
}

// RequestFailed reports a terminal failure with a one-line reason.
func RequestFailed(reason string) string {
	return "❌ *Transaction Failed*\n\n" + firstLine(reason)
}

// RateLimited asks the user to slow down pairing attempts.
func RateLimited() string {
	return "⏳ Too many pairing attempts. Please wait a moment and try again."
}

// RequestExpired reports that a pending request timed out.
func RequestExpired() string {
	return "⏰ *Request Expired*\n\nThe request was not approved in time and has been cancelled."
}

// approvalFooter explains the reaction protocol.
func approvalFooter() string {
	return "• React with 👍 to approve\n• React with 👎 to reject"
}

// formatEther renders a wei amount as a decimal ether string without
// trailing zeros.
func formatEther(wei *big.Int) string {
	ether := new(big.Rat).SetFrac(wei, big.NewInt(1e18))
	s := ether.FloatString(18)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "" || s == "-" {
		return "0"
	}
	return s
}

// firstLine trims a multi-line error down to its first line.
func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
