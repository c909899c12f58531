package bot

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/quickvoicy/quickvoicy/internal/domain"
	"github.com/quickvoicy/quickvoicy/internal/pdf"
	"github.com/quickvoicy/quickvoicy/internal/service/invoiceservice"
	"github.com/quickvoicy/quickvoicy/internal/service/userservice"
	"github.com/quickvoicy/quickvoicy/internal/wallet"
)

var newCommandRe = regexp.MustCompile(`^/new\s+(\d+)\s+"(.+)"$`)

type Telegram struct {
	api      *tgbotapi.BotAPI
	users    *userservice.Service
	invoices *invoiceservice.Service
	pdf      *pdf.Generator
	sessions *sessionStore
}

func NewTelegram(token string, users *userservice.Service, invoices *invoiceservice.Service, gen *pdf.Generator) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("can't init telegram bot: %w", err)
	}
	return &Telegram{
		api:      api,
		users:    users,
		invoices: invoices,
		pdf:      gen,
		sessions: newSessionStore(defaultSessionTTL),
	}, nil
}

func (t *Telegram) Platform() string { return domain.PlatformTelegram }

// Send implements notify.Sender. In private chats the chat id equals the
// platform user id, which is what the store keeps.
func (t *Telegram) Send(ctx context.Context, platformID string, text string) error {
	chatID, err := strconv.ParseInt(platformID, 10, 64)
	if err != nil {
		return fmt.Errorf("bad telegram platform id %q: %w", platformID, err)
	}
	_, err = t.api.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

// Run consumes updates until the context ends.
func (t *Telegram) Run(ctx context.Context) {
	go t.sessions.Sweep(ctx, time.Minute)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := t.api.GetUpdatesChan(u)

	zap.L().Info("Telegram bot started", zap.String("username", t.api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			t.api.StopReceivingUpdates()
			return
		case upd := <-updates:
			t.handleUpdate(ctx, upd)
		}
	}
}

func (t *Telegram) handleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || !msg.Chat.IsPrivate() || msg.From == nil {
		return
	}

	platformID := strconv.FormatInt(msg.From.ID, 10)
	user, err := t.users.GetOrCreate(ctx, domain.PlatformTelegram, platformID)
	if err != nil {
		zap.L().Error("can't resolve telegram user", zap.Error(err))
		t.reply(msg.Chat.ID, "Something went wrong. Please try again.")
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	switch {
	case strings.HasPrefix(text, "/start"):
		t.handleStart(msg.Chat.ID, msg.From.FirstName, user)
	case strings.HasPrefix(text, "/connect"):
		t.handleConnect(ctx, msg.Chat.ID, user, text)
	case strings.HasPrefix(text, "/disconnect"):
		t.handleDisconnect(ctx, msg.Chat.ID, user)
	case strings.HasPrefix(text, "/new"):
		t.handleNew(msg.Chat.ID, platformID, user, text)
	case strings.HasPrefix(text, "/invoices"):
		t.handleInvoices(ctx, msg.Chat.ID, user)
	case strings.HasPrefix(text, "/stats"):
		t.handleStats(ctx, msg.Chat.ID, user)
	case strings.HasPrefix(text, "/check"):
		t.handleCheck(ctx, msg.Chat.ID, user, text)
	case strings.HasPrefix(text, "/pdf"):
		t.handlePDF(ctx, msg.Chat.ID, user, text)
	case strings.HasPrefix(text, "/delete"):
		t.handleDelete(ctx, msg.Chat.ID, user, text)
	case strings.HasPrefix(text, "/help"):
		t.reply(msg.Chat.ID, helpText)
	case strings.HasPrefix(text, "/"):
		t.reply(msg.Chat.ID, "Unknown command. Use /help to see what I can do.")
	default:
		t.handleSessionInput(ctx, msg.Chat.ID, platformID, user, text)
	}
}

const helpText = `Quickvoicy commands:

/new <amount> "<description>" - create an invoice
/connect <nwc_url> - connect your Lightning wallet
/disconnect - remove the stored wallet
/invoices - your latest invoices
/check <invoice_id> - check payment status
/pdf <invoice_id> - get the invoice as PDF
/delete <invoice_id> - delete an invoice
/stats - your earnings`

func (t *Telegram) handleStart(chatID int64, firstName string, user *domain.User) {
	if firstName == "" {
		firstName = "there"
	}
	walletLine := "⚠️ Connect your wallet with /connect to get started"
	if user.HasWallet() {
		walletLine = "✅ Your wallet is connected"
	}
	t.reply(chatID, fmt.Sprintf(
		"Welcome to Quickvoicy, %s!\n\nProfessional Lightning invoices in seconds.\n\n%s\n\n%s",
		firstName, walletLine, helpText,
	))
}

func (t *Telegram) handleConnect(ctx context.Context, chatID int64, user *domain.User, text string) {
	parts := strings.Fields(text)
	if len(parts) != 2 {
		t.reply(chatID, "Usage: /connect <nwc_url>")
		return
	}

	err := t.users.ConnectWallet(ctx, user.ID, parts[1])
	switch {
	case err == nil:
		t.reply(chatID, "✅ Wallet connected! You can create invoices now.")
	case errors.Is(err, wallet.ErrBadCredential), errors.Is(err, wallet.ErrConnection):
		t.reply(chatID, "❌ Connection failed. Please check your NWC URL and try again.")
	default:
		zap.L().Error("wallet connect failed", zap.Int("userID", user.ID), zap.Error(err))
		t.reply(chatID, "Something went wrong. Please try again.")
	}
}

func (t *Telegram) handleDisconnect(ctx context.Context, chatID int64, user *domain.User) {
	if err := t.users.DisconnectWallet(ctx, user.ID); err != nil {
		zap.L().Error("wallet disconnect failed", zap.Int("userID", user.ID), zap.Error(err))
		t.reply(chatID, "Something went wrong. Please try again.")
		return
	}
	t.reply(chatID, "🔌 Wallet disconnected.")
}

func (t *Telegram) handleNew(chatID int64, platformID string, user *domain.User, text string) {
	if !user.HasWallet() {
		t.reply(chatID, "⚠️ Please connect your Lightning wallet first: /connect <nwc_url>")
		return
	}

	m := newCommandRe.FindStringSubmatch(text)
	if m == nil {
		t.reply(chatID, "Usage: /new <amount> \"<description>\"\n\nExample: /new 5000 \"Website development\"")
		return
	}
	amount, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || amount <= 0 {
		t.reply(chatID, "Amount must be a positive number of sats.")
		return
	}

	t.sessions.Put(platformID, &invoiceSession{
		Step:        stepClientName,
		Amount:      amount,
		Description: m[2],
	})
	t.reply(chatID, "👤 Who is this invoice for? Send the client name:")
}

// handleSessionInput advances an in-progress invoice form.
func (t *Telegram) handleSessionInput(ctx context.Context, chatID int64, platformID string, user *domain.User, text string) {
	sess, ok := t.sessions.Get(platformID)
	if !ok {
		return
	}

	switch sess.Step {
	case stepClientName:
		sess.ClientName = text
		sess.Step = stepClientEmail
		t.sessions.Put(platformID, sess)
		t.reply(chatID, "📧 Client email (or \"skip\"):")
	case stepClientEmail:
		email := text
		if strings.EqualFold(email, "skip") {
			email = ""
		}
		t.sessions.Delete(platformID)
		t.finishInvoice(ctx, chatID, user, sess, email)
	}
}

func (t *Telegram) finishInvoice(ctx context.Context, chatID int64, user *domain.User, sess *invoiceSession, clientEmail string) {
	inv, err := t.invoices.Create(ctx, invoiceservice.CreateRequest{
		UserID:      user.ID,
		Amount:      sess.Amount,
		Description: sess.Description,
		ClientName:  sess.ClientName,
		ClientEmail: clientEmail,
	})
	if err != nil {
		zap.L().Error("invoice creation failed", zap.Int("userID", user.ID), zap.Error(err))
		t.reply(chatID, "❌ Failed to create the invoice. Please try again.")
		return
	}

	t.reply(chatID, fmt.Sprintf(
		"✅ Invoice created!\n\nID: %s\nAmount: %d sats\nClient: %s\n\n⚡ Lightning invoice:\n%s",
		inv.ID, inv.Amount, inv.ClientName, inv.LightningInvoice,
	))
	t.sendPDF(chatID, inv)
}

func (t *Telegram) handleInvoices(ctx context.Context, chatID int64, user *domain.User) {
	invoices, err := t.invoices.List(ctx, user.ID, invoiceservice.DefaultListLimit)
	if err != nil {
		t.reply(chatID, "Something went wrong. Please try again.")
		return
	}
	if len(invoices) == 0 {
		t.reply(chatID, "No invoices yet. Create one with /new!")
		return
	}

	var b strings.Builder
	b.WriteString("📋 Your invoices:\n\n")
	for _, inv := range invoices {
		mark := "⏳"
		if inv.Status == invoiceservice.StatusPaid {
			mark = "✅"
		}
		fmt.Fprintf(&b, "%s %d sats — %s\n   %s · %s\n", mark, inv.Amount, inv.Description, inv.ID, inv.CreatedAt.Format("02 Jan 2006"))
	}
	t.reply(chatID, b.String())
}

func (t *Telegram) handleStats(ctx context.Context, chatID int64, user *domain.User) {
	stats, err := t.invoices.Stats(ctx, user.ID)
	if err != nil {
		t.reply(chatID, "Something went wrong. Please try again.")
		return
	}
	t.reply(chatID, fmt.Sprintf(
		"💰 Your stats:\n\nTotal invoices: %d\nPaid: %d\nTotal earned: %d sats",
		stats.TotalInvoices, stats.PaidInvoices, stats.TotalEarned,
	))
}

func (t *Telegram) handleCheck(ctx context.Context, chatID int64, user *domain.User, text string) {
	id, ok := commandArg(text)
	if !ok {
		t.reply(chatID, "Usage: /check <invoice_id>")
		return
	}

	paid, _, err := t.invoices.CheckPayment(ctx, user.ID, id)
	switch {
	case errors.Is(err, invoiceservice.ErrInvoiceNotFound):
		t.reply(chatID, "Invoice not found.")
	case errors.Is(err, invoiceservice.ErrWalletNotConnected):
		t.reply(chatID, "⚠️ Connect your wallet first: /connect <nwc_url>")
	case err != nil:
		t.reply(chatID, "Couldn't check the payment right now. Please try again.")
	case paid:
		t.reply(chatID, "✅ This invoice has been paid!")
	default:
		t.reply(chatID, "⏳ Still pending.")
	}
}

func (t *Telegram) handlePDF(ctx context.Context, chatID int64, user *domain.User, text string) {
	id, ok := commandArg(text)
	if !ok {
		t.reply(chatID, "Usage: /pdf <invoice_id>")
		return
	}

	inv, err := t.invoices.Get(ctx, user.ID, id)
	if err != nil {
		t.reply(chatID, "Invoice not found.")
		return
	}
	t.sendPDF(chatID, inv)
}

func (t *Telegram) handleDelete(ctx context.Context, chatID int64, user *domain.User, text string) {
	id, ok := commandArg(text)
	if !ok {
		t.reply(chatID, "Usage: /delete <invoice_id>")
		return
	}

	err := t.invoices.Delete(ctx, user.ID, id)
	if errors.Is(err, invoiceservice.ErrInvoiceNotFound) {
		t.reply(chatID, "Invoice not found.")
		return
	}
	if err != nil {
		t.reply(chatID, "Something went wrong. Please try again.")
		return
	}
	t.reply(chatID, "🗑 Invoice deleted.")
}

func (t *Telegram) sendPDF(chatID int64, inv *domain.Invoice) {
	path, err := t.pdf.Generate(inv)
	if err != nil {
		zap.L().Error("pdf generation failed", zap.String("invoiceID", inv.ID), zap.Error(err))
		t.reply(chatID, "Couldn't render the PDF for this invoice.")
		return
	}
	defer t.pdf.Cleanup(path)

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))
	doc.Caption = fmt.Sprintf("Invoice #%s", inv.ID)
	if _, err := t.api.Send(doc); err != nil {
		zap.L().Error("can't send invoice pdf", zap.String("invoiceID", inv.ID), zap.Error(err))
	}
}

func (t *Telegram) reply(chatID int64, text string) {
	if _, err := t.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		zap.L().Error("can't send telegram message", zap.Int64("chatID", chatID), zap.Error(err))
	}
}

func commandArg(text string) (string, bool) {
	parts := strings.Fields(text)
	if len(parts) != 2 {
		return "", false
	}
	return parts[1], true
}
