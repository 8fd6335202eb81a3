package discord

import "github.com/bwmarrin/discordgo"

// Slash command names.
const (
	CommandCustomDice   = "custom_dice"
	CommandSumCustomSet = "sum_custom_set"
	CommandPreset       = "preset"
	CommandClear        = "clear"
	CommandRoll         = "r"
	CommandHelp         = "help"
)

const (
	optionButtons       = "buttons"
	optionAnswerChannel = "answer_channel"
	optionReroll        = "reroll"
	optionSaveAs        = "save_as"
	optionName          = "name"
	optionExpression    = "expression"
	optionHidden        = "hidden"
)

// Commands returns the slash commands the bot registers.
func Commands() []*discordgo.ApplicationCommand {
	var manageMessages int64 = discordgo.PermissionManageMessages
	return []*discordgo.ApplicationCommand{
		{
			Name:        CommandRoll,
			Description: "Roll one dice expression",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        optionExpression,
					Description: "Expression with an optional label, for example 2d6+3@Damage",
					Required:    true,
					MaxLength:   2000,
				},
				{
					Type:        discordgo.ApplicationCommandOptionBoolean,
					Name:        optionHidden,
					Description: "Show the answer only to you",
				},
			},
		},
		{
			Name:        CommandHelp,
			Description: "Explain the bot commands",
		},
		{
			Name:        CommandCustomDice,
			Description: "Post buttons that each roll one expression",
			Options:     setupOptions("Expressions separated by ';', for example 1d20@Attack;2d6+3@Damage"),
		},
		{
			Name:        CommandSumCustomSet,
			Description: "Post buttons that build one summed roll",
			Options:     setupOptions("Parts separated by ';', for example 1d6;1d8;-1"),
		},
		{
			Name:        CommandPreset,
			Description: "Post the buttons of a saved preset",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        optionName,
					Description: "Preset name",
					Required:    true,
					MaxLength:   64,
				},
			},
		},
		{
			Name:                     CommandClear,
			Description:              "Remove every button message of the bot in this channel",
			DefaultMemberPermissions: &manageMessages,
		},
	}
}

func setupOptions(buttonsDescription string) []*discordgo.ApplicationCommandOption {
	return []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        optionButtons,
			Description: buttonsDescription,
			Required:    true,
			MaxLength:   2000,
		},
		{
			Type:         discordgo.ApplicationCommandOptionChannel,
			Name:         optionAnswerChannel,
			Description:  "Post answers in this channel instead",
			ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
		},
		{
			Type:        discordgo.ApplicationCommandOptionBoolean,
			Name:        optionReroll,
			Description: "Let the roller reroll single dice of an answer",
		},
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        optionSaveAs,
			Description: "Save as a preset of this server",
			MaxLength:   64,
		},
	}
}
