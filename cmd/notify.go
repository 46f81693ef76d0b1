package cmd

import (
	"VelArchiver/internal/config"
	"VelArchiver/internal/notifier"
)

// NotifierFromConfig builds a Notifier from cfg. If notifications are disabled it returns notifier.Nop.
// When Discord is configured but invalid (e.g. missing webhook_url), warn is called with the error message.
func NotifierFromConfig(cfg *config.Config, warn func(string)) notifier.Notifier {
	if cfg == nil || !config.NotificationsEnabled(cfg.Notifications) || cfg.Notifications.Discord == nil {
		return notifier.Nop{}
	}
	n, err := notifier.NewDiscordNotifier(cfg.Notifications.Discord)
	if err != nil {
		if warn != nil {
			warn("discord notification: " + err.Error())
		}
		return notifier.Nop{}
	}
	return n
}
