package model

import "github.com/zeromicro/go-zero/core/stores/sqlc"

// ErrNotFound mirrors the teacher's model.ErrNotFound: every *Model.FindOneBy*
// method returns this sentinel, never sqlc.ErrNotFound directly, so callers
// never need to import the stores/sqlc package themselves.
var ErrNotFound = sqlc.ErrNotFound
