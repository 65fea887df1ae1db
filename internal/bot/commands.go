package bot

// Command constants for Telegram bot commands.
const (
	CommandStart  = "/start"
	CommandCancel = "/cancel"
	CommandHelp   = "/help"

	// Operator commands, restricted to raffle.admin_ids.
	CommandStats   = "/stats"
	CommandAdmin   = "/admin"
	CommandPending = "/pending"
	CommandSweep   = "/sweep"
)
