package keyboard

import (
	"log/slog"
	"strconv"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/raffle-bot/internal/i18n"
)

// Callback identifiers shared by the keyboards and the router.
const (
	CallbackBuyMenu        = "menu_buy"
	CallbackMyTickets      = "menu_tickets"
	CallbackInfo           = "menu_info"
	CallbackBackToMenu     = "menu_back"
	CallbackQuantity       = "qty"
	CallbackTicketsPage    = "tickets"
	CallbackConfirmPayment = "confirm_payment_"
)

// Option is one purchasable ticket bundle.
type Option struct {
	Count int
	Price string
}

// Builder creates the bot's inline keyboards.
type Builder struct {
	log *slog.Logger
}

// NewBuilder returns a new Builder instance.
func NewBuilder(log *slog.Logger) *Builder {
	if log == nil {
		log = slog.Default()
	}
	return &Builder{log: log}
}

// MainMenu builds the idle state menu.
func (b *Builder) MainMenu(t i18n.Translator) *telebot.ReplyMarkup {
	return b.build(NewInlineKeyboard().
		AddRow(InlineButton{Text: translated(t, "buttons.buy", "Buy Tickets"), Unique: CallbackBuyMenu}).
		AddRow(InlineButton{Text: translated(t, "buttons.my_tickets", "My Tickets"), Unique: CallbackMyTickets}).
		AddRow(InlineButton{Text: translated(t, "buttons.info", "Raffle Info"), Unique: CallbackInfo}))
}

// BuyOptions builds one button per purchase option plus a way back.
func (b *Builder) BuyOptions(t i18n.Translator, options []Option) *telebot.ReplyMarkup {
	kb := NewInlineKeyboard()
	for _, opt := range options {
		text := opt.Price
		if t != nil {
			text = t.Tf("buttons.option", opt)
		}
		kb.AddRow(InlineButton{Text: text, Unique: CallbackQuantity, Data: strconv.Itoa(opt.Count)})
	}
	kb.AddRow(b.backButton(t))
	return b.build(kb)
}

// Checkout links to the gateway payment page and offers a manual confirmation.
func (b *Builder) Checkout(t i18n.Translator, paymentURL, reference string) *telebot.ReplyMarkup {
	return b.build(NewInlineKeyboard().
		AddRow(InlineButton{Text: translated(t, "buttons.pay_now", "Pay Now"), URL: paymentURL}).
		AddRow(InlineButton{Text: translated(t, "buttons.confirm", "Confirm Payment"), Unique: ConfirmPaymentData(reference)}).
		AddRow(b.backButton(t)))
}

// ConfirmOnly offers the confirmation button for an open checkout without the payment link.
func (b *Builder) ConfirmOnly(t i18n.Translator, reference string) *telebot.ReplyMarkup {
	return b.build(NewInlineKeyboard().
		AddRow(InlineButton{Text: translated(t, "buttons.confirm", "Confirm Payment"), Unique: ConfirmPaymentData(reference)}).
		AddRow(b.backButton(t)))
}

// TicketsPage renders pagination for the ticket list followed by a way back.
func (b *Builder) TicketsPage(t i18n.Translator, page, pages int) *telebot.ReplyMarkup {
	kb := NewInlineKeyboard()
	if pages > 1 {
		kb.AddRow(PaginationButtons(t, CallbackTicketsPage, page, pages)...)
	}
	kb.AddRow(b.backButton(t))
	return b.build(kb)
}

// BackToMenu builds a single back button.
func (b *Builder) BackToMenu(t i18n.Translator) *telebot.ReplyMarkup {
	return b.build(NewInlineKeyboard().AddRow(b.backButton(t)))
}

// ConfirmPaymentData is the callback payload of the confirm button for reference.
func ConfirmPaymentData(reference string) string {
	return CallbackConfirmPayment + reference
}

func (b *Builder) backButton(t i18n.Translator) InlineButton {
	return InlineButton{Text: translated(t, "buttons.back", "Back to Menu"), Unique: CallbackBackToMenu}
}

func (b *Builder) build(kb *InlineKeyboardBuilder) *telebot.ReplyMarkup {
	markup, err := kb.Build()
	if err != nil {
		b.log.Error("failed to build keyboard", slog.Any("error", err))
		return &telebot.ReplyMarkup{}
	}
	return markup
}
