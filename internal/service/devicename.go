package service

import (
	"math/rand"
	"strings"
)

// Generated display names for devices that join without one, in the style
// of "cookievanilla", "zedblade", "pikanika".

var nameAdjectives = []string{
	"cookie", "vanilla", "chocolate", "caramel", "mint", "berry", "honey", "spice",
	"cyber", "neon", "pixel", "quantum", "chrome", "steel", "laser", "plasma",
	"shadow", "flame", "frost", "storm", "mystic", "golden", "silver", "cosmic",
	"fox", "wolf", "bear", "tiger", "eagle", "shark", "penguin", "falcon",
	"ocean", "forest", "mountain", "river", "meadow", "canyon", "valley", "glacier",
}

var nameNouns = []string{
	"blade", "sword", "arrow", "spear", "hammer", "shield", "katana", "scythe",
	"core", "chip", "byte", "code", "link", "node", "grid", "socket",
	"ninja", "samurai", "ranger", "mage", "knight", "scout", "hunter", "sentinel",
	"stone", "gem", "crystal", "orb", "prism", "beacon", "spark", "pulse",
	"dream", "echo", "whisper", "spirit", "essence", "aura", "rhythm", "melody",
}

var nameSpecialCombos = []string{
	"cookievanilla", "zedblade", "pikanika", "shadowfox", "moonbeam", "starfire",
	"thunderbolt", "icestorm", "goldenwolf", "silverarrow", "crystalcore",
	"plasmawave", "quantumleap", "voidwalker", "dragonheart", "phoenixwing",
	"tigerclaw", "eagleeye", "sharkbite", "foxfire", "forestmist", "oceandepth",
	"mountainpeak", "desertstorm", "glacierflow", "valleysong",
}

var colorTags = []string{
	"bg-red-500", "bg-blue-500", "bg-green-500", "bg-purple-500",
	"bg-yellow-500", "bg-pink-500", "bg-indigo-500", "bg-orange-500",
}

// GenerateDeviceName returns a memorable two-part name, occasionally one of
// the special combos.
func GenerateDeviceName() string {
	if rand.Float64() < 0.2 {
		return nameSpecialCombos[rand.Intn(len(nameSpecialCombos))]
	}

	adjective := nameAdjectives[rand.Intn(len(nameAdjectives))]
	noun := nameNouns[rand.Intn(len(nameNouns))]
	return adjective + noun
}

// DeviceNameOrDefault trims a caller-supplied name, falling back to a
// generated one when empty.
func DeviceNameOrDefault(name string) string {
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		return trimmed
	}
	return GenerateDeviceName()
}

func RandomColorTag() string {
	return colorTags[rand.Intn(len(colorTags))]
}

func ColorTagOrDefault(color string) string {
	if trimmed := strings.TrimSpace(color); trimmed != "" {
		return trimmed
	}
	return RandomColorTag()
}
