// Package repository implements the auction engine's persistence interfaces
// on PostgreSQL, accessed through database/sql with the pgx stdlib driver.
//
// Expected schema:
//
//	bid_requests(request_id text PK, session_id text, user_id text,
//	    site_id text, device_type text, user_agent text, ip_address text,
//	    geo jsonb, profile jsonb, auction_type text, floor_price numeric,
//	    timeout_ms bigint, created_at timestamptz)
//	campaigns(id uuid PK, name text, base_bid numeric, destination_url text,
//	    ad_title text, ad_body text, image_url text, targeting jsonb,
//	    active boolean, created_at timestamptz, updated_at timestamptz)
//	bids(id uuid PK, request_id text, campaign_id uuid, bid_price numeric,
//	    score numeric, ad_markup text, click_url text, impression_url text,
//	    won boolean, reason text, created_at timestamptz)
//	auctions(request_id text PK, winning_bid_id uuid, winning_price numeric,
//	    second_price numeric, total_bids int, duration_ms bigint,
//	    served boolean, clicked boolean, converted boolean, revenue numeric,
//	    created_at timestamptz, updated_at timestamptz)
//	impressions(id bigserial PK, request_id text, campaign_id uuid,
//	    created_at timestamptz)
//	clicks(click_id uuid PK, request_id text, campaign_id uuid,
//	    created_at timestamptz)
package repository

import (
	"context"
	"database/sql"
)

// db is the subset of database/sql both *sql.DB and *sql.Tx satisfy
type db interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}
