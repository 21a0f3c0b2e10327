package backup

// columnKind drives value conversion between database rows and the
// NDJSON payload.
type columnKind int

const (
	kindText columnKind = iota
	kindInt
	kindFloat
	kindBool
	kindTime
	kindJSON
	kindStrings
)

type columnSpec struct {
	Name     string
	Kind     columnKind
	Nullable bool
}

type tableSpec struct {
	Name    string
	Columns []columnSpec

	// ConflictCols are the upsert conflict target, normally the
	// primary key.
	ConflictCols []string
}

// backupTables lists every table in dependency order so imports satisfy
// foreign keys within a single transaction.
var backupTables = []tableSpec{
	{
		Name: "decks",
		Columns: []columnSpec{
			{Name: "id", Kind: kindText},
			{Name: "owner_id", Kind: kindText},
			{Name: "title", Kind: kindText},
			{Name: "description", Kind: kindText},
			{Name: "created_at", Kind: kindTime},
		},
		ConflictCols: []string{"id"},
	},
	{
		Name: "cards",
		Columns: []columnSpec{
			{Name: "id", Kind: kindText},
			{Name: "deck_id", Kind: kindText},
			{Name: "type", Kind: kindText},
			{Name: "front", Kind: kindText},
			{Name: "back", Kind: kindText},
			{Name: "tags", Kind: kindStrings},
			{Name: "source_excerpt", Kind: kindText},
			{Name: "created_at", Kind: kindTime},
			{Name: "updated_at", Kind: kindTime},
		},
		ConflictCols: []string{"id"},
	},
	{
		Name: "scheduler_states",
		Columns: []columnSpec{
			{Name: "card_id", Kind: kindText},
			{Name: "ease", Kind: kindFloat},
			{Name: "interval_days", Kind: kindInt},
			{Name: "repetitions", Kind: kindInt},
			{Name: "next_due_at", Kind: kindTime},
			{Name: "last_reviewed_at", Kind: kindTime, Nullable: true},
		},
		ConflictCols: []string{"card_id"},
	},
	{
		Name: "reviews",
		Columns: []columnSpec{
			{Name: "id", Kind: kindText},
			{Name: "card_id", Kind: kindText},
			{Name: "user_id", Kind: kindText},
			{Name: "response", Kind: kindText},
			{Name: "ease", Kind: kindFloat},
			{Name: "latency_ms", Kind: kindInt},
			{Name: "created_at", Kind: kindTime},
		},
		ConflictCols: []string{"id"},
	},
	{
		Name: "study_sessions",
		Columns: []columnSpec{
			{Name: "id", Kind: kindText},
			{Name: "user_id", Kind: kindText},
			{Name: "deck_id", Kind: kindText, Nullable: true},
			{Name: "started_at", Kind: kindTime},
			{Name: "ended_at", Kind: kindTime, Nullable: true},
			{Name: "cards_reviewed", Kind: kindInt},
			{Name: "correct_count", Kind: kindInt},
			{Name: "stats", Kind: kindJSON, Nullable: true},
		},
		ConflictCols: []string{"id"},
	},
	{
		Name: "import_jobs",
		Columns: []columnSpec{
			{Name: "id", Kind: kindText},
			{Name: "user_id", Kind: kindText},
			{Name: "deck_id", Kind: kindText},
			{Name: "source_type", Kind: kindText},
			{Name: "topic", Kind: kindText},
			{Name: "content", Kind: kindText},
			{Name: "status", Kind: kindText},
			{Name: "error", Kind: kindText},
			{Name: "result_summary", Kind: kindText},
			{Name: "created_at", Kind: kindTime},
			{Name: "completed_at", Kind: kindTime, Nullable: true},
		},
		ConflictCols: []string{"id"},
	},
}

func (t *tableSpec) columnNames() []string {
	names := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		names[i] = col.Name
	}
	return names
}

func (t *tableSpec) findColumn(name string) *columnSpec {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}
