package testsupport

import (
	"context"
	"fmt"
	"testing"

	"bindery/internal/books"
	"bindery/internal/config"
	"bindery/internal/orders"
)

// MustOpenOrderStore opens an orders.Store for tests and registers cleanup.
func MustOpenOrderStore(t testing.TB, cfg *config.Config) *orders.Store {
	t.Helper()

	store, err := orders.Open(cfg)
	if err != nil {
		t.Fatalf("orders.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenBookStore opens a books.Store for tests and registers cleanup.
func MustOpenBookStore(t testing.TB, cfg *config.Config) *books.Store {
	t.Helper()

	store, err := books.Open(cfg)
	if err != nil {
		t.Fatalf("books.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// SeedBook creates a book with the given number of captioned content pages.
func SeedBook(t testing.TB, store *books.Store, title string, contentPages int) *books.Book {
	t.Helper()

	book, err := store.CreateBook(context.Background(), title, books.CoverDesign{
		Subtitle:   "A Test Volume",
		AuthorLine: "Test Author",
		Dedication: "For the reviewers.",
		Theme:      "classic",
	})
	if err != nil {
		t.Fatalf("store.CreateBook: %v", err)
	}
	for i := 1; i <= contentPages; i++ {
		if _, err := store.AddPage(context.Background(), book.ID,
			fmt.Sprintf("Page %d", i),
			fmt.Sprintf("Caption for page %d with a handful of words.", i)); err != nil {
			t.Fatalf("store.AddPage: %v", err)
		}
	}
	return book
}

// NewOrder creates a pending order for tests with a valid US address.
func NewOrder(t testing.TB, store *orders.Store, bookID string) *orders.Order {
	t.Helper()

	order, err := store.NewOrder(context.Background(), bookID, "reader@example.com", orders.Address{
		Name:        "Pat Reader",
		Street1:     "1 Library Way",
		City:        "Portland",
		StateCode:   "OR",
		PostalCode:  "97201",
		CountryCode: "US",
	}, 4500, "USD")
	if err != nil {
		t.Fatalf("store.NewOrder: %v", err)
	}
	return order
}
