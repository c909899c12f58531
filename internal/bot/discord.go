package bot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/quickvoicy/quickvoicy/internal/domain"
	"github.com/quickvoicy/quickvoicy/internal/pdf"
	"github.com/quickvoicy/quickvoicy/internal/service/invoiceservice"
	"github.com/quickvoicy/quickvoicy/internal/service/userservice"
	"github.com/quickvoicy/quickvoicy/internal/wallet"
)

var discordNewRe = regexp.MustCompile(`^!new\s+(\d+)\s+"(.+)"(?:\s+(.+))?$`)

type Discord struct {
	session  *discordgo.Session
	users    *userservice.Service
	invoices *invoiceservice.Service
	pdf      *pdf.Generator
}

func NewDiscord(token string, users *userservice.Service, invoices *invoiceservice.Service, gen *pdf.Generator) (*Discord, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("can't init discord bot: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentMessageContent

	return &Discord{
		session:  session,
		users:    users,
		invoices: invoices,
		pdf:      gen,
	}, nil
}

func (d *Discord) Platform() string { return domain.PlatformDiscord }

// Send implements notify.Sender and delivers over a DM channel.
func (d *Discord) Send(ctx context.Context, platformID string, text string) error {
	channel, err := d.session.UserChannelCreate(platformID)
	if err != nil {
		return fmt.Errorf("can't open dm channel: %w", err)
	}
	_, err = d.session.ChannelMessageSend(channel.ID, text)
	return err
}

func (d *Discord) Run(ctx context.Context) error {
	d.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		d.handleMessage(ctx, m)
	})

	if err := d.session.Open(); err != nil {
		return fmt.Errorf("can't open discord session: %w", err)
	}
	zap.L().Info("Discord bot started", zap.String("username", d.session.State.User.Username))

	<-ctx.Done()
	if err := d.session.Close(); err != nil {
		zap.L().Warn("discord session close failed", zap.Error(err))
	}
	return nil
}

func (d *Discord) handleMessage(ctx context.Context, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	text := strings.TrimSpace(m.Content)
	if !strings.HasPrefix(text, "!") {
		return
	}

	user, err := d.users.GetOrCreate(ctx, domain.PlatformDiscord, m.Author.ID)
	if err != nil {
		zap.L().Error("can't resolve discord user", zap.Error(err))
		d.reply(m.ChannelID, "Something went wrong. Please try again.")
		return
	}

	switch {
	case strings.HasPrefix(text, "!help") || strings.HasPrefix(text, "!start"):
		d.reply(m.ChannelID, discordHelpText)
	case strings.HasPrefix(text, "!connect"):
		d.handleConnect(ctx, m.ChannelID, user, text)
	case strings.HasPrefix(text, "!disconnect"):
		d.handleDisconnect(ctx, m.ChannelID, user)
	case strings.HasPrefix(text, "!new"):
		d.handleNew(ctx, m.ChannelID, user, text)
	case strings.HasPrefix(text, "!invoices"):
		d.handleInvoices(ctx, m.ChannelID, user)
	case strings.HasPrefix(text, "!stats"):
		d.handleStats(ctx, m.ChannelID, user)
	case strings.HasPrefix(text, "!check"):
		d.handleCheck(ctx, m.ChannelID, user, text)
	default:
		d.reply(m.ChannelID, "Unknown command. Use !help to see available commands.")
	}
}

const discordHelpText = "Quickvoicy commands:\n" +
	"`!new <amount> \"<description>\" [client name]` - create an invoice\n" +
	"`!connect <nwc_url>` - connect your Lightning wallet\n" +
	"`!disconnect` - remove the stored wallet\n" +
	"`!invoices` - your latest invoices\n" +
	"`!check <invoice_id>` - check payment status\n" +
	"`!stats` - your earnings"

func (d *Discord) handleConnect(ctx context.Context, channelID string, user *domain.User, text string) {
	parts := strings.Fields(text)
	if len(parts) != 2 {
		d.reply(channelID, "Usage: `!connect <nwc_url>`")
		return
	}

	err := d.users.ConnectWallet(ctx, user.ID, parts[1])
	switch {
	case err == nil:
		d.reply(channelID, "✅ Wallet connected! You can create invoices now.")
	case errors.Is(err, wallet.ErrBadCredential), errors.Is(err, wallet.ErrConnection):
		d.reply(channelID, "❌ Connection failed. Please check your NWC URL and try again.")
	default:
		zap.L().Error("wallet connect failed", zap.Int("userID", user.ID), zap.Error(err))
		d.reply(channelID, "Something went wrong. Please try again.")
	}
}

func (d *Discord) handleDisconnect(ctx context.Context, channelID string, user *domain.User) {
	if err := d.users.DisconnectWallet(ctx, user.ID); err != nil {
		d.reply(channelID, "Something went wrong. Please try again.")
		return
	}
	d.reply(channelID, "🔌 Wallet disconnected.")
}

func (d *Discord) handleNew(ctx context.Context, channelID string, user *domain.User, text string) {
	if !user.HasWallet() {
		d.reply(channelID, "⚠️ Please connect your Lightning wallet first: `!connect <nwc_url>`")
		return
	}

	m := discordNewRe.FindStringSubmatch(text)
	if m == nil {
		d.reply(channelID, "Usage: `!new <amount> \"<description>\" [client name]`")
		return
	}
	amount, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || amount <= 0 {
		d.reply(channelID, "Amount must be a positive number of sats.")
		return
	}

	inv, err := d.invoices.Create(ctx, invoiceservice.CreateRequest{
		UserID:      user.ID,
		Amount:      amount,
		Description: m[2],
		ClientName:  strings.TrimSpace(m[3]),
	})
	if err != nil {
		zap.L().Error("invoice creation failed", zap.Int("userID", user.ID), zap.Error(err))
		d.reply(channelID, "❌ Failed to create the invoice. Please try again.")
		return
	}

	d.reply(channelID, fmt.Sprintf(
		"✅ Invoice created!\n\nID: %s\nAmount: %d sats\n\n⚡ Lightning invoice:\n```%s```",
		inv.ID, inv.Amount, inv.LightningInvoice,
	))
	d.sendPDF(channelID, inv)
}

func (d *Discord) handleInvoices(ctx context.Context, channelID string, user *domain.User) {
	invoices, err := d.invoices.List(ctx, user.ID, invoiceservice.DefaultListLimit)
	if err != nil {
		d.reply(channelID, "Something went wrong. Please try again.")
		return
	}
	if len(invoices) == 0 {
		d.reply(channelID, "No invoices yet. Create one with `!new`!")
		return
	}

	var b strings.Builder
	b.WriteString("📋 Your invoices:\n\n")
	for _, inv := range invoices {
		mark := "⏳"
		if inv.Status == invoiceservice.StatusPaid {
			mark = "✅"
		}
		fmt.Fprintf(&b, "%s %d sats — %s (`%s`)\n", mark, inv.Amount, inv.Description, inv.ID)
	}
	d.reply(channelID, b.String())
}

func (d *Discord) handleStats(ctx context.Context, channelID string, user *domain.User) {
	stats, err := d.invoices.Stats(ctx, user.ID)
	if err != nil {
		d.reply(channelID, "Something went wrong. Please try again.")
		return
	}
	d.reply(channelID, fmt.Sprintf(
		"💰 Your stats:\n\nTotal invoices: %d\nPaid: %d\nTotal earned: %d sats",
		stats.TotalInvoices, stats.PaidInvoices, stats.TotalEarned,
	))
}

func (d *Discord) handleCheck(ctx context.Context, channelID string, user *domain.User, text string) {
	id, ok := commandArg(text)
	if !ok {
		d.reply(channelID, "Usage: `!check <invoice_id>`")
		return
	}

	paid, _, err := d.invoices.CheckPayment(ctx, user.ID, id)
	switch {
	case errors.Is(err, invoiceservice.ErrInvoiceNotFound):
		d.reply(channelID, "Invoice not found.")
	case errors.Is(err, invoiceservice.ErrWalletNotConnected):
		d.reply(channelID, "⚠️ Connect your wallet first: `!connect <nwc_url>`")
	case err != nil:
		d.reply(channelID, "Couldn't check the payment right now. Please try again.")
	case paid:
		d.reply(channelID, "✅ This invoice has been paid!")
	default:
		d.reply(channelID, "⏳ Still pending.")
	}
}

func (d *Discord) sendPDF(channelID string, inv *domain.Invoice) {
	path, err := d.pdf.Generate(inv)
	if err != nil {
		zap.L().Error("pdf generation failed", zap.String("invoiceID", inv.ID), zap.Error(err))
		return
	}
	defer d.pdf.Cleanup(path)

	f, err := os.Open(path)
	if err != nil {
		zap.L().Error("can't open invoice pdf", zap.String("path", path), zap.Error(err))
		return
	}
	defer f.Close()

	_, err = d.session.ChannelFileSend(channelID, fmt.Sprintf("invoice-%s.pdf", inv.ID), f)
	if err != nil {
		zap.L().Error("can't send invoice pdf", zap.String("invoiceID", inv.ID), zap.Error(err))
	}
}

func (d *Discord) reply(channelID, text string) {
	if _, err := d.session.ChannelMessageSend(channelID, text); err != nil {
		zap.L().Error("can't send discord message", zap.String("channelID", channelID), zap.Error(err))
	}
}
