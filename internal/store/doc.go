// Package store persists analysis results.
//
// It owns record identity (timestamp + coordinates) and is the only
// component that touches the backing medium. Mutations are serialized;
// reads observe a consistent state.
package store
