package bot

import "fmt"

func welcomeMessage(name string, maxFreeUses int) string {
	return fmt.Sprintf(`Hello %s! 👋

Welcome to *Upscaler Bot*!

Send me an image or a video and I will upscale it to a higher resolution (2K/4K).

Free accounts get %d conversions. For unlimited use, become a VIP member with /vip

Type /help for more.`, name, maxFreeUses)
}

func helpMessage(maxFreeUses int, maxImageMB, maxVideoMB int64) string {
	return fmt.Sprintf(`*Upscaler Bot Help* 🌟

*Commands:*
/start - Start the bot
/help - Show this help
/vip - VIP membership info
/usage - Check remaining conversions

*How to use:*
1. Send an image or a video
2. Wait while it is processed
3. Receive the upscaled result

*Free account limits:*
- %d free conversions
- Max image size: %dMB
- Max video size: %dMB
- Upscaling up to 2K

*VIP benefits:*
- Unlimited conversions
- Upscaling up to 4K`, maxFreeUses, maxImageMB, maxVideoMB)
}

const adminHelpMessage = `*Admin Menu* 🔐

*Admin commands:*
/stats - Usage statistics
/addvip [user_id] - Grant VIP to a user
/resetusage [user_id] - Reset a user's usage counter`

const notAdminMessage = "Sorry, this command is only available to the admin."

func statsMessage(totalUsers, vipUsers, totalUsage, activeUsers int) string {
	return fmt.Sprintf(`*Bot Statistics* 📊

*Total users:* %d
*VIP users:* %d
*Total conversions:* %d
*Active users:* %d (last 7 days)`, totalUsers, vipUsers, totalUsage, activeUsers)
}

const (
	addVipUsageMessage    = "Usage: /addvip [user_id]"
	resetUsageHelpMessage = "Usage: /resetusage [user_id]"
	userNotFoundMessage   = "User ID not found."
)

func vipAddedMessage(userID string) string {
	return fmt.Sprintf("User ID %s is now a VIP member.", userID)
}

func usageResetMessage(userID string) string {
	return fmt.Sprintf("Usage counter for user ID %s has been reset.", userID)
}

const vipInfoMessage = `*VIP Membership* ✨

Join VIP to get:
- Unlimited conversions
- Upscaling up to 4K resolution
- Priority support

Tap the button below to join.`

const (
	vipStatusMessage   = "You are a VIP member! You have unlimited access to upscaling."
	adminStatusMessage = "You are the admin! You have unlimited access to upscaling."
)

func usageInfoMessage(remaining, maxFreeUses int) string {
	return fmt.Sprintf(`You have %d of %d conversions left.

For unlimited use, become a VIP member with /vip`, remaining, maxFreeUses)
}

func usageLimitMessage(maxFreeUses int) string {
	return fmt.Sprintf(`⚠️ *Usage limit reached* ⚠️

You have used all %d of your free conversions.

To keep using this bot, please become a VIP member.`, maxFreeUses)
}

const (
	processingImageMessage = "🔄 Processing image..."
	processingVideoMessage = "🔄 Processing video..."
	uploadingMessage       = "⬆️ Uploading result..."
	completeMessage        = "✅ Done!"
	errorMessage           = "❌ Something went wrong while processing your file. Please try again."
	unsupportedMessage     = "⚠️ Unsupported file type. Please send an image or a video."
	unknownCommandMessage  = "⚠️ Unknown command. Type /help for help."
	noGeometryMessage      = "⚠️ Could not read the media dimensions. Please send it as a photo or video instead of a file."
)

func tooLargeMessage(kind string, maxMB int64) string {
	return fmt.Sprintf("⚠️ The %s is too large! Maximum size is %dMB.", kind, maxMB)
}

func resultCaption(kind, tierLabel string) string {
	if kind == "video" {
		return fmt.Sprintf("🌟 Video upscaled to %s quality", tierLabel)
	}
	return fmt.Sprintf("🌟 Image upscaled to %s quality", tierLabel)
}

var progressBars = []string{
	"🔍 Upscaling... [⬛⬜⬜⬜⬜] 20%",
	"🔍 Upscaling... [⬛⬛⬜⬜⬜] 40%",
	"🔍 Upscaling... [⬛⬛⬛⬜⬜] 60%",
	"🔍 Upscaling... [⬛⬛⬛⬛⬜] 80%",
	"🔍 Upscaling... [⬛⬛⬛⬛⬛] 99%",
}

func progressMessage(fraction float64) string {
	idx := int(fraction * 5)
	if idx >= len(progressBars) {
		idx = len(progressBars) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return progressBars[idx]
}

func vipJoinURL(displayName, userID string) string {
	return fmt.Sprintf("https://trakteer.id/silviaroy-shita/tip?quantity=1&step=2&display_name=%s&supporter_message=join_vip_%s", displayName, userID)
}
