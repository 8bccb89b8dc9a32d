package profanity

// defaultWords is the built-in list. Entries are lowercase.
var defaultWords = []string{
	"arsehole",
	"asshole",
	"bastard",
	"bitch",
	"bollocks",
	"bullshit",
	"cock",
	"cunt",
	"dick",
	"dickhead",
	"fag",
	"faggot",
	"fuck",
	"fucker",
	"fucking",
	"motherfucker",
	"nigger",
	"piss",
	"prick",
	"pussy",
	"retard",
	"shit",
	"shithead",
	"slut",
	"twat",
	"wanker",
	"whore",
}
