package store

// Tournament mirrors one row of the tournament table.
type Tournament struct {
	ID         int64
	LichessID  string
	Name       string
	IsFinished bool
	IsHidden   bool
}

// Game mirrors one row of the game table: a single followed broadcast game.
type Game struct {
	ID             int64
	TournamentID   int64
	LichessRoundID string
	LichessID      string
	GameName       string
	RoundName      string
	Player1Name    string
	Player1FideID  *int
	Player1Rating  *int
	Player1Fed     *string
	Player2Name    string
	Player2FideID  *int
	Player2Rating  *int
	Player2Fed     *string
	Status         string
	IsFinished     bool
	IsHidden       bool
}

// GameFilter is one header-match row used to pick the right PGN out of a round's feed.
type GameFilter struct {
	GameID int64
	Key    string
	Value  string
}

// GamePosition mirrors one row of the game_position table. The engine-derived columns
// carry the latest evaluation bundle for that position.
type GamePosition struct {
	ID         int64
	GameID     int64
	PlyNumber  int
	FEN        string
	MoveUCI    *string
	MoveSAN    *string
	WhiteClock *int
	BlackClock *int
	Nodes      int64
	QScore     *int
	WhiteScore *int
	DrawScore  *int
	BlackScore *int
	MovesLeft  *int
	TimeMS     int64
	Depth      int
	SelDepth   int
}

// GamePositionEvaluation mirrors one completed info bundle persisted for a position.
type GamePositionEvaluation struct {
	ID         int64
	PositionID int64
	Nodes      int64
	TimeMS     int64
	Depth      int
	SelDepth   int
	MovesLeft  *int
}

// GamePositionEvaluationMove mirrors one PV row of an evaluation bundle.
type GamePositionEvaluationMove struct {
	ID           int64
	EvaluationID int64
	Nodes        int64
	MoveUCI      string
	MoveSAN      string
	QScore       *int
	PVSan        []string
	PVUci        []string
	MateScore    *int
	WhiteScore   *int
	DrawScore    *int
	BlackScore   *int
	MovesLeft    *int
}
