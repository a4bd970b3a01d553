// Package postgres provides a PostgreSQL-backed [goIdent.CredentialStore] on
// top of a pgx v5 connection pool.
//
// Atomicity guarantees map onto row-conditioned statements: rotation revokes
// the predecessor with an UPDATE guarded by "NOT revoked" inside a
// transaction, backup codes are consumed with SELECT ... FOR UPDATE, and
// token-ID burning rides on a unique-key INSERT. Schema lives in schema.sql
// next to this package.
package postgres
