package phoenix

// Names of settings rows the bot reads. The settings table is the
// configuration source of record, managed by the web dashboard.
const (
	SettingGuildID          = "discord_guild_id"
	SettingBotToken         = "discord_bot_token"
	SettingMemberRoleID     = "discord_member_role_id"
	SettingCoLeaderRoleID   = "discord_co_leader_role_id"
	SettingLeaderRoleID     = "discord_leader_role_id"
	SettingWelcomeChannelID = "discord_welcome_channel_id"
	SettingSiteURL          = "site_url"
)
