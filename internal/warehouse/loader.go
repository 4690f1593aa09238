package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lepinkainen/folio/internal/reconcile"
)

// Load writes one canonical book into the star schema. The whole load runs in
// a single transaction: dimensions first, then the book row, then the
// author/genre bridges, then the metrics fact. Any failure rolls back every
// row.
//
// Loads are idempotent. Re-loading the same book resolves to the same
// dimension rows, refreshes the book attributes and supersedes the fact row
// for the same snapshot date.
func (w *Warehouse) Load(ctx context.Context, book *reconcile.CanonicalBook, asOf time.Time) error {
	if book == nil {
		return fmt.Errorf("nil book")
	}
	if book.ISBN13 == "" {
		return fmt.Errorf("book has no ISBN")
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin load transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	snapshotKey, err := upsertDate(ctx, tx, asOf)
	if err != nil {
		return err
	}

	var publishedKey *int
	if book.PublishedDate != nil {
		key, err := upsertDate(ctx, tx, *book.PublishedDate)
		if err != nil {
			return err
		}
		publishedKey = &key
	}

	var publisherID *int64
	if book.Publisher != nil {
		id, err := upsertPublisher(ctx, tx, *book.Publisher)
		if err != nil {
			return err
		}
		publisherID = &id
	}

	bookID, err := upsertBook(ctx, tx, book, publisherID, publishedKey)
	if err != nil {
		return err
	}

	if err := replaceAuthorBridge(ctx, tx, bookID, book.Authors); err != nil {
		return err
	}
	if err := replaceGenreBridge(ctx, tx, bookID, book.Genres); err != nil {
		return err
	}

	if err := upsertFact(ctx, tx, bookID, book, snapshotKey); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit load: %w", err)
	}
	return nil
}

func upsertDate(ctx context.Context, tx *sql.Tx, t time.Time) (int, error) {
	dim := DeriveDate(t)
	_, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO dim_date
			(date_key, full_date, year, month, day, quarter, day_of_week, is_weekend)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		dim.DateKey, dim.FullDate, dim.Year, dim.Month, dim.Day,
		dim.Quarter, dim.DayOfWeek, dim.IsWeekend)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert date %d: %w", dim.DateKey, err)
	}
	return dim.DateKey, nil
}

func upsertPublisher(ctx context.Context, tx *sql.Tx, name string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `
		INSERT INTO dim_publisher (name) VALUES (?)
		ON CONFLICT (name) DO UPDATE SET name = excluded.name
		RETURNING publisher_id`, name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert publisher %q: %w", name, err)
	}
	return id, nil
}

// upsertAuthor resolves an author to its dimension row. The natural key is
// the OpenLibrary author key when known, falling back to the normalized name.
// A keyed arrival for a previously unkeyed name enriches the existing row
// instead of creating a duplicate.
func upsertAuthor(ctx context.Context, tx *sql.Tx, author reconcile.Author) (int64, error) {
	nameKey := reconcile.NormalizeKey(author.Name)

	if author.Key != "" {
		var id int64
		err := tx.QueryRowContext(ctx,
			`SELECT author_id FROM dim_author WHERE ol_author_key = ?`, author.Key).Scan(&id)
		if err == nil {
			return id, nil
		}
		if err != sql.ErrNoRows {
			return 0, fmt.Errorf("failed to look up author key %q: %w", author.Key, err)
		}

		// Same name seen before without a key: attach the key to that row.
		err = tx.QueryRowContext(ctx,
			`SELECT author_id FROM dim_author WHERE name_key = ? AND ol_author_key IS NULL`, nameKey).Scan(&id)
		if err == nil {
			if _, err := tx.ExecContext(ctx,
				`UPDATE dim_author SET ol_author_key = ? WHERE author_id = ?`, author.Key, id); err != nil {
				return 0, fmt.Errorf("failed to attach author key %q: %w", author.Key, err)
			}
			return id, nil
		}
		if err != sql.ErrNoRows {
			return 0, fmt.Errorf("failed to look up author %q: %w", author.Name, err)
		}

		result, err := tx.ExecContext(ctx,
			`INSERT INTO dim_author (name, name_key, ol_author_key) VALUES (?, ?, ?)`,
			author.Name, nameKey, author.Key)
		if err != nil {
			if isUniqueViolation(err) {
				// Lost a race with a concurrent insert of the same key.
				if lookupErr := tx.QueryRowContext(ctx,
					`SELECT author_id FROM dim_author WHERE ol_author_key = ?`, author.Key).Scan(&id); lookupErr == nil {
					return id, nil
				}
			}
			return 0, fmt.Errorf("failed to insert author %q: %w", author.Name, err)
		}
		return result.LastInsertId()
	}

	var id int64
	err := tx.QueryRowContext(ctx,
		`SELECT author_id FROM dim_author WHERE name_key = ? ORDER BY ol_author_key IS NULL LIMIT 1`, nameKey).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("failed to look up author %q: %w", author.Name, err)
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO dim_author (name, name_key) VALUES (?, ?)`, author.Name, nameKey)
	if err != nil {
		if isUniqueViolation(err) {
			// Lost a race with a concurrent insert of the same name.
			if lookupErr := tx.QueryRowContext(ctx,
				`SELECT author_id FROM dim_author WHERE name_key = ? LIMIT 1`, nameKey).Scan(&id); lookupErr == nil {
				return id, nil
			}
		}
		return 0, fmt.Errorf("failed to insert author %q: %w", author.Name, err)
	}
	return result.LastInsertId()
}

func upsertGenre(ctx context.Context, tx *sql.Tx, name string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `
		INSERT INTO dim_genre (genre_name) VALUES (?)
		ON CONFLICT (genre_name) DO UPDATE SET genre_name = excluded.genre_name
		RETURNING genre_id`, name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert genre %q: %w", name, err)
	}
	return id, nil
}

func upsertBook(ctx context.Context, tx *sql.Tx, book *reconcile.CanonicalBook, publisherID *int64, publishedKey *int) (int64, error) {
	var languages *string
	if len(book.Languages) > 0 {
		joined := strings.Join(book.Languages, ",")
		languages = &joined
	}

	var id int64
	err := tx.QueryRowContext(ctx, `
		INSERT INTO dim_books
			(isbn, title, title_has_conflict, subtitle, description, page_count,
			 cover_url, work_key, languages, publisher_id, published_date_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (isbn) DO UPDATE SET
			title = excluded.title,
			title_has_conflict = excluded.title_has_conflict,
			subtitle = excluded.subtitle,
			description = excluded.description,
			page_count = excluded.page_count,
			cover_url = excluded.cover_url,
			work_key = excluded.work_key,
			languages = excluded.languages,
			publisher_id = excluded.publisher_id,
			published_date_key = excluded.published_date_key,
			updated_at = CURRENT_TIMESTAMP
		RETURNING book_id`,
		book.ISBN13, book.Title, book.TitleHasConflict, book.Subtitle,
		book.Description, book.PageCount, book.CoverURL, book.WorkKey,
		languages, publisherID, publishedKey).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert book %s: %w", book.ISBN13, err)
	}
	return id, nil
}

func replaceAuthorBridge(ctx context.Context, tx *sql.Tx, bookID int64, authors []reconcile.Author) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM book_authors WHERE book_id = ?`, bookID); err != nil {
		return fmt.Errorf("failed to clear author bridge: %w", err)
	}
	for position, author := range authors {
		authorID, err := upsertAuthor(ctx, tx, author)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO book_authors (book_id, author_id, position)
			VALUES (?, ?, ?)`, bookID, authorID, position); err != nil {
			return fmt.Errorf("failed to link author %q: %w", author.Name, err)
		}
	}
	return nil
}

func replaceGenreBridge(ctx context.Context, tx *sql.Tx, bookID int64, genres []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM book_genres WHERE book_id = ?`, bookID); err != nil {
		return fmt.Errorf("failed to clear genre bridge: %w", err)
	}
	for _, genre := range genres {
		genreID, err := upsertGenre(ctx, tx, genre)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO book_genres (book_id, genre_id)
			VALUES (?, ?)`, bookID, genreID); err != nil {
			return fmt.Errorf("failed to link genre %q: %w", genre, err)
		}
	}
	return nil
}

// upsertFact writes the metrics snapshot. A later load for the same book and
// snapshot date supersedes the earlier measurements.
func upsertFact(ctx context.Context, tx *sql.Tx, bookID int64, book *reconcile.CanonicalBook, snapshotKey int) error {
	m := book.Metrics
	_, err := tx.ExecContext(ctx, `
		INSERT INTO fact_book_metrics
			(book_id, isbn, snapshot_date_key, rating_avg, rating_count,
			 edition_count, list_price, retail_price, currency_code,
			 is_ebook_available, saleability)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (isbn, snapshot_date_key) DO UPDATE SET
			book_id = excluded.book_id,
			rating_avg = excluded.rating_avg,
			rating_count = excluded.rating_count,
			edition_count = excluded.edition_count,
			list_price = excluded.list_price,
			retail_price = excluded.retail_price,
			currency_code = excluded.currency_code,
			is_ebook_available = excluded.is_ebook_available,
			saleability = excluded.saleability`,
		bookID, book.ISBN13, snapshotKey, m.RatingAvg, m.RatingCount,
		m.EditionCount, m.ListPrice, m.RetailPrice, m.CurrencyCode,
		m.IsEbookAvailable, m.Saleability)
	if err != nil {
		return fmt.Errorf("failed to upsert metrics for %s: %w", book.ISBN13, err)
	}
	return nil
}
