package keyboard

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Proton-105/raffle-bot/internal/i18n"
)

// PaginationButtons returns up to three inline buttons (prev, current page, next)
// allowing the caller to paginate lists using a shared action prefix.
func PaginationButtons(t i18n.Translator, action string, page, totalPages int) []InlineButton {
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	buttons := make([]InlineButton, 0, 3)

	if page > 1 {
		buttons = append(buttons, InlineButton{
			Text:   translated(t, "pagination.pagination_prev", "◀️ Prev"),
			Unique: action,
			Data:   strconv.Itoa(page - 1),
		})
	}

	buttons = append(buttons, InlineButton{
		Text:   paginationLabel(t, page, totalPages),
		Unique: action,
		Data:   strconv.Itoa(page),
	})

	if page < totalPages {
		buttons = append(buttons, InlineButton{
			Text:   translated(t, "pagination.pagination_next", "Next ▶️"),
			Unique: action,
			Data:   strconv.Itoa(page + 1),
		})
	}

	return buttons
}

// Paginate returns the slice bounds of page (1-based) and the page count.
func Paginate(total, pageSize, page int) (start, end, pages int) {
	if pageSize <= 0 {
		pageSize = total
	}
	pages = 1
	if total > 0 && pageSize > 0 {
		pages = (total + pageSize - 1) / pageSize
	}
	if page < 1 {
		page = 1
	}
	if page > pages {
		page = pages
	}

	start = (page - 1) * pageSize
	end = min(start+pageSize, total)
	return start, end, pages
}

func translated(t i18n.Translator, key, fallback string) string {
	if t == nil {
		return fallback
	}

	text := strings.TrimSpace(t.T(key))
	if text == "" || text == key {
		return fallback
	}

	return text
}

func paginationLabel(t i18n.Translator, page, total int) string {
	if t != nil {
		label := t.Tf("pagination.pagination_page", map[string]int{"Page": page, "Total": total})
		if label != "" && label != "pagination.pagination_page" && !strings.Contains(label, "{{") {
			return label
		}
	}
	return fmt.Sprintf("Page %d/%d", page, total)
}
