// Package api 處理 HTTP 請求路由和處理。
//
// 路由只有訊息歷史、送出訊息、推送通道與健康檢查四個端點；
// handlers 子包負責將 HTTP 請求轉換為服務調用，並將結果轉換回 HTTP 響應。
package api
