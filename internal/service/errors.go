package service

import "errors"

// 佇列操作的錯誤分類
// handler 層用 errors.Is 對應到 HTTP 狀態碼：
// ErrNotFound → 404、ErrAlreadyQueued → 400、ErrUnauthorized → 403，
// 其他錯誤一律視為內部錯誤回 500
var (
	ErrNotFound      = errors.New("資源不存在")
	ErrAlreadyQueued = errors.New("使用者已在發言席或候位清單中")
	ErrUnauthorized  = errors.New("沒有權限執行此操作")
)
