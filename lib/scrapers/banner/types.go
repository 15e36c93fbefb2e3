package banner

// Profile identifies one school's self-service deployment.
type Profile struct {
	School    string `json:"school"`
	BaseHost  string `json:"base_host"`
	BasePath  string `json:"base_path"`
	ChunkLoad bool   `json:"chunk_load"`
}

// Calendar is one academic term or session offered by the school.
type Calendar struct {
	ID             string   `json:"Calendar ID"`
	Name           string   `json:"Calendar Name"`
	ProcessingTime int      `json:"Processing Time"`
	Courses        []Course `json:"Courses"`
}

// Course is one section listing. The CRN uniquely keys a course within
// a calendar. Json keys match the dump format the display frontend
// already reads.
type Course struct {
	CRN              string            `json:"CRN"`
	Section          string            `json:"Section"`
	Subject          string            `json:"Subject"`
	Abbreviation     string            `json:"Abbreviation"`
	Level            string            `json:"Level"`
	Name             string            `json:"Name"`
	Description      string            `json:"Description"`
	Credits          string            `json:"Credits"`
	Capacity         int               `json:"Capacity"`
	Registered       int               `json:"Registered"`
	Remaining        int               `json:"Remaining"`
	Waitlisted       int               `json:"Waitlisted"`
	Prerequisites    []string          `json:"Prerequisites"`
	Corequisites     []string          `json:"Corequisites"`
	MutualExclusions []string          `json:"Mutual Exclusions"`
	CrossListCourses []string          `json:"Cross List Courses"`
	Restrictions     []Restriction     `json:"Restrictions"`
	Attributes       []string          `json:"Attributes"`
	Properties       []MeetingProperty `json:"Properties"`
}

// MeetingProperty is one scheduled meeting of a course. A course always
// carries at least one, a placeholder with every field set to "TBA"
// when the site reports no meeting times yet.
type MeetingProperty struct {
	Type        string   `json:"Type"`
	Time        string   `json:"Time"`
	Days        []string `json:"Days"`
	Location    string   `json:"Location"`
	Period      string   `json:"Period"`
	Nature      string   `json:"Nature"`
	Instructors []string `json:"Instructors"`
}

// Restriction is one registration restriction block: a description
// line ("Must be enrolled in one of the following Levels:") followed by
// its requirement lines.
type Restriction struct {
	Description  string   `json:"Description"`
	Requirements []string `json:"Requirements"`
}

// Seats holds the registration availability counts of a course.
type Seats struct {
	Capacity   int
	Registered int
	Remaining  int
	Waitlisted int
}

// DetailFields are the optional pattern-extracted fields of a detail
// information page. A nil slice means the field was absent.
type DetailFields struct {
	Prerequisites    []string
	Corequisites     []string
	MutualExclusions []string
	CrossListCourses []string
	Restrictions     []Restriction
}

// fetchTargets pairs the two follow-up path lists produced by the
// listing parser, aligned one-to-one with the parsed course list.
// Consumed once per calendar, then discarded.
type fetchTargets struct {
	descPaths []string
	infoPaths []string
}
