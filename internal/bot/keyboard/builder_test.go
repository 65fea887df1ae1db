package keyboard_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/raffle-bot/internal/bot/keyboard"
	"github.com/Proton-105/raffle-bot/internal/i18n"
)

func translator(t *testing.T) i18n.Translator {
	t.Helper()
	m, err := i18n.Load("en")
	require.NoError(t, err)
	return m.Translator("en")
}

func TestBuilder_MainMenu(t *testing.T) {
	markup := keyboard.NewBuilder(nil).MainMenu(translator(t))

	require.Len(t, markup.InlineKeyboard, 3)
	assert.Equal(t, keyboard.CallbackBuyMenu, markup.InlineKeyboard[0][0].Data)
	assert.Equal(t, keyboard.CallbackMyTickets, markup.InlineKeyboard[1][0].Data)
	assert.Equal(t, keyboard.CallbackInfo, markup.InlineKeyboard[2][0].Data)
}

func TestBuilder_BuyOptions(t *testing.T) {
	markup := keyboard.NewBuilder(nil).BuyOptions(translator(t), []keyboard.Option{
		{Count: 1, Price: "₦10"},
		{Count: 5, Price: "₦50"},
	})

	require.Len(t, markup.InlineKeyboard, 3)
	assert.Equal(t, "1 ticket - ₦10", markup.InlineKeyboard[0][0].Text)
	assert.Equal(t, "qty:1", markup.InlineKeyboard[0][0].Data)
	assert.Equal(t, "5 tickets - ₦50", markup.InlineKeyboard[1][0].Text)
	assert.Equal(t, "qty:5", markup.InlineKeyboard[1][0].Data)
	assert.Equal(t, keyboard.CallbackBackToMenu, markup.InlineKeyboard[2][0].Data)
}

func TestBuilder_Checkout(t *testing.T) {
	markup := keyboard.NewBuilder(nil).Checkout(translator(t), "https://checkout.paystack.com/x", "raffle_42_2_abcdefghijkl")

	require.Len(t, markup.InlineKeyboard, 3)
	assert.Equal(t, "https://checkout.paystack.com/x", markup.InlineKeyboard[0][0].URL)
	assert.Equal(t, "confirm_payment_raffle_42_2_abcdefghijkl", markup.InlineKeyboard[1][0].Data)
	assert.Equal(t, keyboard.CallbackBackToMenu, markup.InlineKeyboard[2][0].Data)
}

func TestBuilder_TicketsPage(t *testing.T) {
	b := keyboard.NewBuilder(nil)

	single := b.TicketsPage(translator(t), 1, 1)
	require.Len(t, single.InlineKeyboard, 1)

	paged := b.TicketsPage(translator(t), 2, 3)
	require.Len(t, paged.InlineKeyboard, 2)
	require.Len(t, paged.InlineKeyboard[0], 3)
	assert.Equal(t, "tickets:3", paged.InlineKeyboard[0][2].Data)
}

func TestBuilder_ConfirmOnly(t *testing.T) {
	markup := keyboard.NewBuilder(nil).ConfirmOnly(translator(t), "raffle_42_2_abcdefghijkl")

	require.Len(t, markup.InlineKeyboard, 2)
	assert.Equal(t, "confirm_payment_raffle_42_2_abcdefghijkl", markup.InlineKeyboard[0][0].Data)
	assert.Empty(t, markup.InlineKeyboard[0][0].URL)
	assert.Equal(t, keyboard.CallbackBackToMenu, markup.InlineKeyboard[1][0].Data)
}
