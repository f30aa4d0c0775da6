package domain

// Member represents user's participation meta for a room.
// Mic and Cam are advisory flags reported by the client, never enforced.
type Member struct {
	User *User
	Mic  bool
	Cam  bool
}

func NewMember(user *User) *Member {
	return &Member{User: user, Mic: true, Cam: true}
}
