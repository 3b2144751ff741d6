// Package errs 定義跨層共用的錯誤分類。
//
// 各層以 fmt.Errorf("%w: ...") 包裝，呼叫端以 errors.Is 判斷類別，
// 再由 API 層轉換成對應的 HTTP 狀態碼。
package errs

import "errors"

var (
	// ErrInvalidInput 草稿未通過驗證，不會寫入也不會廣播
	ErrInvalidInput = errors.New("invalid input")
	// ErrStoreUnavailable 資料庫連線或查詢失敗
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrDeliveryFailure 單一觀看者連線推送失敗，只影響該連線
	ErrDeliveryFailure = errors.New("delivery failure")
	// ErrHubClosed 廣播中心已關閉
	ErrHubClosed = errors.New("hub closed")
)
