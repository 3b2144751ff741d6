// Package middleware 提供了 HTTP 請求處理的中間件。
//
// 這個包包含請求識別碼、請求日誌與送出訊息的限流，
// 由 api.SetupRoutes 掛在對應的路由上。
package middleware
