package content

import (
	"math/rand/v2"
	"time"
)

// QuoteType tags paid quotes
const QuoteType = "premium_quote"

var quotes = []string{
	"Code is like humor. When you have to explain it, it's bad. - Cory House",
	"First, solve the problem. Then, write the code. - John Johnson",
	"Any fool can write code that a computer can understand. Good programmers write code that humans can understand. - Martin Fowler",
	"The best error message is the one that never shows up. - Thomas Fuchs",
	"Talk is cheap. Show me the code. - Linus Torvalds",
	"Programs must be written for people to read, and only incidentally for machines to execute. - Harold Abelson",
	"The most important property of a program is whether it accomplishes the intention of its user. - C.A.R. Hoare",
}

// Quote is the body of the paid quotes resource
type Quote struct {
	Quote     string    `json:"quote"`
	Timestamp time.Time `json:"timestamp"`
	Paid      bool      `json:"paid"`
	Type      string    `json:"type"`
}

// RandomQuote picks a programming quote
func RandomQuote(now time.Time) Quote {
	return Quote{
		Quote:     quotes[rand.IntN(len(quotes))],
		Timestamp: now.UTC(),
		Paid:      true,
		Type:      QuoteType,
	}
}

// Quotes lists every quote
func Quotes() []string {
	out := make([]string, len(quotes))
	copy(out, quotes)
	return out
}

// FreeJokes lists every free joke
func FreeJokes() []string {
	out := make([]string, len(freeJokes))
	copy(out, freeJokes)
	return out
}
