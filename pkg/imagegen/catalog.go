package imagegen

import (
	"sort"
	"strings"
)

// Activity is how one activity is shown to a person.
type Activity struct {
	Description string `json:"description"`
	Prompt      string `json:"prompt"`
}

var catalog = map[string]Activity{
	"sleeping": {
		Description: "Mochi is curled up and snoozing peacefully 💤",
		Prompt:      "A cute fluffy white dog sleeping curled up in a cozy bed, soft lighting, anime style",
	},
	"eating": {
		Description: "Mochi is munching on some yummy food 🍖",
		Prompt:      "An adorable white fluffy dog eating from a bowl with happy expression, food pieces flying, cartoon style",
	},
	"playing": {
		Description: "Mochi is playing with toys and having fun 🎾",
		Prompt:      "A cute white dog playing joyfully with colorful toys in a sunny living room, watercolor style",
	},
	"walking": {
		Description: "Mochi is out for a walk exploring the world 🦮",
		Prompt:      "Fluffy white dog walking happily on a leash in a park with trees and flowers, digital art style",
	},
	"barking": {
		Description: "Mochi is barking at something interesting 🐕",
		Prompt:      "Small white dog barking excitedly with ears perked up, comic book style with motion lines",
	},
}

// catalogKeys is sorted longest first so "playing" is tried before any
// shorter key that is also a prefix.
var catalogKeys = func() []string {
	keys := make([]string, 0, len(catalog))
	for k := range catalog {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}()

// Describe returns the description and image prompt for an activity.
// Lookup is case-insensitive and also matches on the first word
// ("Playing fetch" uses the "playing" entry). Unknown activities get a
// generic description.
func Describe(activity string) Activity {
	key := strings.ToLower(strings.TrimSpace(activity))
	if a, ok := catalog[key]; ok {
		return a
	}
	for _, k := range catalogKeys {
		if strings.HasPrefix(key, k+" ") {
			return catalog[k]
		}
	}
	return Activity{
		Description: "Mochi is " + activity,
		Prompt:      "A cute white dog " + activity,
	}
}
