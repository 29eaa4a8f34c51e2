// Package folio fetches long-form text from independent web sources described
// by small extraction rule sets. A source bundles endpoint templates and rules
// that locate search results, table-of-contents entries and chapter text in
// HTML or JSON documents.
//
// This package contains domain types and interfaces following Ben Johnson's
// Standard Package Layout. Implementations live in subdirectories named
// after their primary dependency (e.g., sqlite/, goja/, rod/) or concern
// (rule/, acquire/, cache/).
package folio
