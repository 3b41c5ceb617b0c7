package discord

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSnowflake(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    int64
		wantErr bool
	}{
		{"valid", "175928847299117063", 175928847299117063, false},
		{"zero", "0", 0, false},
		{"empty", "", 0, true},
		{"non-numeric", "abc", 0, true},
		{"overflow", "99999999999999999999", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSnowflake(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIgnoreResponse(t *testing.T) {
	added := IgnoreResponse("maria", true)
	assert.Contains(t, added, "maria")
	assert.Contains(t, added, "não serão mais contadas")

	already := IgnoreResponse("maria", false)
	assert.Contains(t, already, "maria")
	assert.Contains(t, already, "já está na lista")
	assert.NotEqual(t, added, already)
}

func TestInteractionUser(t *testing.T) {
	guildUser := &discordgo.User{ID: "1", Username: "from-member"}
	dmUser := &discordgo.User{ID: "2", Username: "from-interaction"}

	tests := []struct {
		name string
		in   *discordgo.InteractionCreate
		want *discordgo.User
	}{
		{
			name: "guild invocation uses member user",
			in: &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
				Member: &discordgo.Member{User: guildUser},
			}},
			want: guildUser,
		},
		{
			name: "direct invocation uses interaction user",
			in: &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
				User: dmUser,
			}},
			want: dmUser,
		},
		{
			name: "no user at all",
			in:   &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{}},
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, interactionUser(tt.in))
		})
	}
}
