// Package types defines the shared data model of the gateway: messages,
// response envelopes, and the structured error kinds that cross the core
// boundary. Every provider adapter raises failures as *types.Error so the
// retry and HTTP layers can classify them without knowing the vendor.
package types
