package chat

// DefaultRoom is preselected when no room is chosen.
const DefaultRoom Room = "General"

// Rooms is the fixed set of rooms a session can join.
var Rooms = []Room{
	"General", "Sports", "Technology", "Music", "Movies", "Travel", "Food",
	"Art", "Science", "History", "Literature", "Gaming", "Health", "Fitness",
	"Education", "Business", "Finance", "Politics", "Environment", "Fashion",
	"Photography", "DIY", "Parenting", "Relationships", "Pets", "Spirituality",
	"Comedy", "Memes", "Random",
}

// IsRoom reports whether name is one of Rooms.
func IsRoom(name string) bool {
	for _, r := range Rooms {
		if string(r) == name {
			return true
		}
	}
	return false
}
