// Package backend provides the ARB museum API server.
//
// The server tracks anonymous museum visits, awards points for first views,
// links visits to an email identity and issues a single promo code once every
// exhibit has been seen. A second surface scores AR video uploads for
// registered accounts.
//
// Packages:
//
//   - internal/progress: visit tracking, identity linking and promo issuance
//   - internal/scoring: AR video upload validation and scoring
//   - internal/stats: view counts and the daily best-asset pick
//   - internal/queue: background promo code delivery
//   - internal/handlers: HTTP handlers for all API endpoints
//   - internal/models: data models and database schemas
//   - internal/auth: AR account registration and JWT validation
//   - internal/events: append-only view event sink
//   - internal/storage: video storage (S3 or local disk)
//   - internal/email: promo code email delivery (SES)
//   - internal/cache: redis client and identity score cache
//   - internal/database: database connection and migrations
//   - internal/middleware: HTTP middleware (auth, rate limiting, tracing, locale)
//   - internal/seed: catalog and demo data
//
// Binaries live under cmd/: server, migrate, seed, promote-admin and the
// arbctl CLI in cmd/cli.
package backend
