// Package entitlements resolves institutional access to content products.
//
// # Resolution order
//
// CheckAccess short-circuits on the first match: institution exists, product
// exists and is available to institutions, effective access model is
// subscription, then a valid direct subscription wins outright. Only when no
// direct subscription is valid does bundle eligibility come into play, and a
// product excluded from the bundle denies immediately without the bundle
// subscription ever being read. Denial is always a structured result with a
// reason, never an error.
//
// The bundle is itself a content product resolved by a well-known name, so
// one subscription row covers every product that opted in via its inclusion
// flag.
package entitlements
