package keys

const (
	// notation dictionary for key formats:
	// u   = user
	// cu  = current user of the local session
	// ch  = channel
	// mem = channel member
	// rd  = channel read watermark
	// m   = message
	// r   = reaction
	// a   = attachment
	// idx = index
	// ms  = messages
	// rp  = replies
	// Segments are separated by ":". Variable segments are escaped so they
	// never contain ":" themselves (see Escape).

	// primary storage key formats
	UserKey       = "u:%s"       // u:<user_id>
	CurrentUser   = "cu"         // cu
	ChannelKey    = "ch:%s"      // ch:<cid>
	MemberKey     = "mem:%s:%s"  // mem:<cid>:<user_id>
	ReadKey       = "rd:%s:%s"   // rd:<cid>:<user_id>
	MessageKey    = "m:%s"       // m:<msg_id>
	ReactionKey   = "r:%s:%s:%s" // r:<msg_id>:<user_id>:<type>
	AttachmentKey = "a:%s:%s:%s" // a:<cid>:<msg_id>:<index>

	// channel → message ordering index, value is empty
	ChannelMessageIndex = "idx:ch:%s:ms:%s:%s" // idx:ch:<cid>:ms:<sort_ts>:<msg_id>

	// parent → replies index, value is a JSON array of reply ids in link order
	ReplyIndex = "idx:m:%s:rp" // idx:m:<parent_id>:rp

	// padding widths (fixed for lexicographic ordering)
	TSPadWidth    = 20 // e.g. %020d
	IndexPadWidth = 6  // e.g. %06d

	// system keys
	SystemVersionKey = "system:version"
)
