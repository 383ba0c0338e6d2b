package config

import (
	"os"
	"strconv"
)

const DATABASE_TYPE = "LNKAUTO_DATABASE_TYPE"
const DATABASE_URL = "LNKAUTO_DATABASE_URL"
const DATABASE_SQLLITE_FILE_NAME = "LNKAUTO_DATABASE_SQLLITE_FILE_NAME"
const SERVER_WEB_PORT = "LNKAUTO_SERVER_WEB_PORT"
const RABBITMQ_URL = "LNKAUTO_RABBITMQ_URL"
const EVENTS_QUEUE = "LNKAUTO_EVENTS_QUEUE"
const EVENTS_PREFETCH = "LNKAUTO_EVENTS_PREFETCH" //max unacked deliveries held by the consumer
const SCHEDULER_RECONCILE_INTERVAL = "LNKAUTO_SCHEDULER_RECONCILE_INTERVAL"
const NOTIFICATION_SERVICE_URL = "LNKAUTO_NOTIFICATION_SERVICE_URL"
const LINK_SERVICE_URL = "LNKAUTO_LINK_SERVICE_URL"
const TEAM_SERVICE_URL = "LNKAUTO_TEAM_SERVICE_URL"
const ANALYTICS_SERVICE_URL = "LNKAUTO_ANALYTICS_SERVICE_URL"
const WEB_SESSION_EXPIRY_HOURS = "LNKAUTO_WEB_SESSION_EXPIRY_HOURS"

const DATABASE_TYPE_POSTGRES = "POSTGRES"
const DATABASE_TYPE_MYSQL = "MYSQL"
const DATABASE_TYPE_SQLLITE = "SQLLITE"

func GetSystemSettingInteger(settingKey string) int {
	val := GetSystemSettingString(settingKey)
	if val != "" {
		intValue, _ := strconv.Atoi(val)
		return intValue
	}
	return 0
}

func GetSystemSettingString(settingKey string) string {
	val := os.Getenv(settingKey)
	if val != "" {
		return val
	}
	if settingKey == SERVER_WEB_PORT {
		return "8080"
	}
	if settingKey == EVENTS_QUEUE {
		return "automation.events"
	}
	if settingKey == EVENTS_PREFETCH {
		return "10"
	}
	if settingKey == SCHEDULER_RECONCILE_INTERVAL {
		return "60s" // default to 60 seconds
	}
	if settingKey == WEB_SESSION_EXPIRY_HOURS {
		return "1"
	}
	if settingKey == DATABASE_SQLLITE_FILE_NAME {
		return "./automation.db"
	}
	return ""
}
