package logging

import "github.com/sirupsen/logrus"

// BaseFields 建立 action 基本欄位
func BaseFields(action string) logrus.Fields {
	return logrus.Fields{
		"action": action,
	}
}

// ViewerFields 觀看者連線相關欄位
func ViewerFields(action, viewerID, addr string) logrus.Fields {
	return logrus.Fields{
		"action":    action,
		"viewer_id": viewerID,
		"addr":      addr,
	}
}

// MessageFields 訊息寫入與廣播相關欄位
func MessageFields(action string, messageID uint64) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"message_id": messageID,
	}
}
