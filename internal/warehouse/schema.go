package warehouse

// Star schema plus the job queue. Dimensions use surrogate integer keys with
// natural-key unique constraints so reloads resolve to the same rows.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
		job_id       TEXT PRIMARY KEY,
		isbn         TEXT NOT NULL DEFAULT '',
		title        TEXT NOT NULL DEFAULT '',
		author       TEXT NOT NULL DEFAULT '',
		status       TEXT NOT NULL DEFAULT 'pending',
		retry_count  INTEGER NOT NULL DEFAULT 0,
		last_error   TEXT,
		created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	// Dedup: one live job per ISBN, or per title+author when no ISBN is known.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_jobs_isbn
		ON jobs(isbn) WHERE isbn != ''`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_jobs_title_author
		ON jobs(title, author) WHERE isbn = ''`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status)`,

	`CREATE TABLE IF NOT EXISTS dim_date (
		date_key     INTEGER PRIMARY KEY,
		full_date    TEXT NOT NULL,
		year         INTEGER NOT NULL,
		month        INTEGER NOT NULL,
		day          INTEGER NOT NULL,
		quarter      TEXT NOT NULL,
		day_of_week  TEXT NOT NULL,
		is_weekend   INTEGER NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS dim_publisher (
		publisher_id INTEGER PRIMARY KEY AUTOINCREMENT,
		name         TEXT NOT NULL UNIQUE,
		created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS dim_author (
		author_id     INTEGER PRIMARY KEY AUTOINCREMENT,
		name          TEXT NOT NULL,
		name_key      TEXT NOT NULL,
		ol_author_key TEXT,
		created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_author_ol_key
		ON dim_author(ol_author_key) WHERE ol_author_key IS NOT NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_author_name_key
		ON dim_author(name_key) WHERE ol_author_key IS NULL`,

	`CREATE TABLE IF NOT EXISTS dim_genre (
		genre_id   INTEGER PRIMARY KEY AUTOINCREMENT,
		genre_name TEXT NOT NULL UNIQUE,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS dim_books (
		book_id            INTEGER PRIMARY KEY AUTOINCREMENT,
		isbn               TEXT NOT NULL UNIQUE,
		title              TEXT NOT NULL,
		title_has_conflict INTEGER NOT NULL DEFAULT 0,
		subtitle           TEXT,
		description        TEXT,
		page_count         INTEGER,
		cover_url          TEXT,
		work_key           TEXT,
		languages          TEXT,
		publisher_id       INTEGER REFERENCES dim_publisher(publisher_id),
		published_date_key INTEGER REFERENCES dim_date(date_key),
		created_at         TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at         TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS book_authors (
		book_id   INTEGER NOT NULL REFERENCES dim_books(book_id),
		author_id INTEGER NOT NULL REFERENCES dim_author(author_id),
		position  INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (book_id, author_id)
	)`,

	`CREATE TABLE IF NOT EXISTS book_genres (
		book_id  INTEGER NOT NULL REFERENCES dim_books(book_id),
		genre_id INTEGER NOT NULL REFERENCES dim_genre(genre_id),
		PRIMARY KEY (book_id, genre_id)
	)`,

	`CREATE TABLE IF NOT EXISTS fact_book_metrics (
		fact_id            INTEGER PRIMARY KEY AUTOINCREMENT,
		book_id            INTEGER NOT NULL REFERENCES dim_books(book_id),
		isbn               TEXT NOT NULL,
		snapshot_date_key  INTEGER NOT NULL REFERENCES dim_date(date_key),
		rating_avg         REAL,
		rating_count       INTEGER,
		edition_count      INTEGER,
		list_price         REAL,
		retail_price       REAL,
		currency_code      TEXT,
		is_ebook_available INTEGER NOT NULL DEFAULT 0,
		saleability        TEXT,
		created_at         TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (isbn, snapshot_date_key)
	)`,
}
