package schema

import "errors"

// ErrUnsupportedQuery is returned by Manager.Query for an
// INFORMATION_SCHEMA/mysql query shape this package does not model;
// callers should fall through to ER_NOT_SUPPORTED_YET rather than
// silently returning an empty set.
var ErrUnsupportedQuery = errors.New("schema: unsupported information_schema query shape")
