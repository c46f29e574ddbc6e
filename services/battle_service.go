package services

import (
	"errors"
	"log"
	"strconv"
	"time"

	"battle-arena-service/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// BattleService owns the battle lifecycle handlers. Every state transition
// is a conditional update keyed on the previously read state, so handlers
// racing each other (or the periodic workers) resolve to exactly one winner
// and a benign no-op.
type BattleService struct {
	DB          *gorm.DB
	Quota       QuotaGate
	Eligibility EligibilityChecker
	Notifier    *NotificationService
}

func NewBattleService(db *gorm.DB, quota QuotaGate, eligibility EligibilityChecker, notifier *NotificationService) *BattleService {
	return &BattleService{DB: db, Quota: quota, Eligibility: eligibility, Notifier: notifier}
}

// RequestBattle creates a new invitation (status=scheduled, unaccepted).
func (s *BattleService) RequestBattle(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	type Req struct {
		OpponentID       string `json:"opponent_id"`
		DurationMinutes  int    `json:"duration_minutes"`
		Title            string `json:"title"`
		RequestedStartAt string `json:"requested_start_at"` // RFC3339
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}

	// --- Validation ---
	if req.OpponentID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "opponent_id is required"})
	}
	if req.OpponentID == userID {
		return c.Status(400).JSON(fiber.Map{"error": "you cannot challenge yourself"})
	}
	if !models.IsAllowedDuration(req.DurationMinutes) {
		return c.Status(400).JSON(fiber.Map{"error": "duration_minutes must be one of 5, 30, 60"})
	}
	if req.RequestedStartAt == "" {
		return c.Status(400).JSON(fiber.Map{"error": "requested_start_at is required"})
	}
	startAt, err := time.Parse(time.RFC3339, req.RequestedStartAt)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid requested_start_at (use RFC3339)"})
	}

	// --- Eligibility (owned by the profile service) ---
	eligible, err := s.Eligibility.IsEligible(c.UserContext(), userID)
	if err != nil {
		log.Printf("❌ Eligibility check failed for user %s: %v", userID, err)
		return c.Status(502).JSON(fiber.Map{"error": "eligibility check unavailable"})
	}
	if !eligible {
		return c.Status(403).JSON(fiber.Map{"error": "you are not eligible to request battles"})
	}

	// --- Daily request quota ---
	allowed, err := s.Quota.Allow(c.UserContext(), ActionBattleRequest, userID, BattleRequestDailyLimit, 24*time.Hour)
	if err != nil {
		log.Printf("❌ Quota gate error for user %s: %v", userID, err)
		return c.Status(500).JSON(fiber.Map{"error": "quota check failed"})
	}
	if !allowed {
		return c.Status(429).JSON(fiber.Map{"error": "daily battle request limit reached"})
	}

	id := uuid.NewString()
	slugBase := req.Title
	if slugBase == "" {
		slugBase = "battle"
	}
	battle := models.Battle{
		ID:               id,
		Slug:             slug.Make(slugBase) + "-" + id[:8],
		Title:            req.Title,
		ChallengerID:     userID,
		OpponentID:       req.OpponentID,
		DurationMinutes:  req.DurationMinutes,
		Status:           models.BattleStatusScheduled,
		RequestedStartAt: startAt,
	}
	if err := s.DB.Create(&battle).Error; err != nil {
		log.Printf("ERROR creating battle for challenger %s: %v", userID, err)
		return c.Status(500).JSON(fiber.Map{"error": "DB insert failed"})
	}

	_ = s.Notifier.Notify(req.OpponentID, models.NotificationBattleRequested,
		"New battle challenge",
		"You have been challenged to a battle.",
		map[string]interface{}{"battle_id": battle.ID, "challenger_id": userID, "requested_start_at": startAt})

	return c.Status(201).JSON(battle)
}

// AcceptBattle lets the invited opponent confirm the invitation.
func (s *BattleService) AcceptBattle(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	id := c.Params("id")

	type Req struct {
		Reason string `json:"reason"`
	}
	var req Req
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
		}
	}

	var battle models.Battle
	if err := s.DB.First(&battle, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "battle not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	if battle.OpponentID != userID {
		return c.Status(403).JSON(fiber.Map{"error": "only the invited opponent can accept"})
	}
	if battle.Status != models.BattleStatusScheduled || battle.OpponentAccepted {
		return c.Status(400).JSON(fiber.Map{"error": "battle can no longer be accepted"})
	}

	now := time.Now()
	result := s.DB.Model(&models.Battle{}).
		Where("id = ? AND status = ? AND opponent_accepted = ?", id, models.BattleStatusScheduled, false).
		Updates(map[string]interface{}{
			"opponent_accepted":        true,
			"opponent_response_reason": req.Reason,
			"opponent_responded_at":    now,
		})
	if result.Error != nil {
		return c.Status(500).JSON(fiber.Map{"error": "accept failed"})
	}
	if result.RowsAffected == 0 {
		// Lost a race with a concurrent accept/decline/expire.
		return c.Status(400).JSON(fiber.Map{"error": "battle can no longer be accepted"})
	}

	_ = s.Notifier.Notify(battle.ChallengerID, models.NotificationBattleAccepted,
		"Challenge accepted",
		"Your battle challenge was accepted.",
		map[string]interface{}{"battle_id": battle.ID, "opponent_id": userID})
	_ = s.Notifier.Notify(battle.ChallengerID, models.NotificationBattleScheduled,
		"Battle scheduled",
		"Your battle is scheduled to start at "+battle.RequestedStartAt.Format(time.RFC3339)+".",
		map[string]interface{}{"battle_id": battle.ID, "requested_start_at": battle.RequestedStartAt})
	_ = s.Notifier.Notify(userID, models.NotificationBattleScheduled,
		"Battle scheduled",
		"You accepted the challenge. The battle is scheduled.",
		map[string]interface{}{"battle_id": battle.ID, "requested_start_at": battle.RequestedStartAt})

	// Echo the state we just wrote; a reload could race a concurrent start.
	battle.OpponentAccepted = true
	battle.OpponentResponseReason = req.Reason
	battle.OpponentRespondedAt = &now
	return c.JSON(fiber.Map{"message": "battle accepted", "battle": battle})
}

// DeclineBattle removes the invitation entirely — a declined battle ceases
// to exist, it is not soft-cancelled.
func (s *BattleService) DeclineBattle(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	id := c.Params("id")

	type Req struct {
		Reason string `json:"reason"`
	}
	var req Req
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
		}
	}

	var battle models.Battle
	if err := s.DB.First(&battle, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "battle not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	if battle.OpponentID != userID {
		return c.Status(403).JSON(fiber.Map{"error": "only the invited opponent can decline"})
	}
	if battle.Status != models.BattleStatusScheduled || battle.OpponentAccepted {
		return c.Status(400).JSON(fiber.Map{"error": "battle can no longer be declined"})
	}

	result := s.DB.Where("id = ? AND status = ? AND opponent_accepted = ?", id, models.BattleStatusScheduled, false).
		Delete(&models.Battle{})
	if result.Error != nil {
		return c.Status(500).JSON(fiber.Map{"error": "decline failed"})
	}
	if result.RowsAffected == 0 {
		return c.Status(400).JSON(fiber.Map{"error": "battle can no longer be declined"})
	}

	_ = s.Notifier.Notify(battle.ChallengerID, models.NotificationBattleDeclined,
		"Challenge declined",
		"Your battle challenge was declined.",
		map[string]interface{}{"battle_id": id, "opponent_id": userID, "reason": req.Reason})

	return c.JSON(fiber.Map{"message": "battle declined"})
}

// StartBattle is the participant-triggered start. It races the autostart
// worker through the same conditional update; exactly one of them flips the
// row.
func (s *BattleService) StartBattle(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	id := c.Params("id")

	var battle models.Battle
	if err := s.DB.First(&battle, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "battle not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	if !battle.IsParticipant(userID) {
		return c.Status(403).JSON(fiber.Map{"error": "only a participant can start the battle"})
	}
	if battle.Status == models.BattleStatusScheduled && !battle.OpponentAccepted {
		return c.Status(400).JSON(fiber.Map{"error": "opponent has not accepted yet"})
	}

	now := time.Now()
	result := s.DB.Model(&models.Battle{}).
		Where("id = ? AND status = ? AND opponent_accepted = ?", id, models.BattleStatusScheduled, true).
		Updates(map[string]interface{}{
			"status":     models.BattleStatusLive,
			"start_time": now,
		})
	if result.Error != nil {
		return c.Status(500).JSON(fiber.Map{"error": "start failed"})
	}
	if result.RowsAffected == 0 {
		return c.Status(409).JSON(fiber.Map{"error": "battle is not in a startable state"})
	}

	for _, uid := range []string{battle.ChallengerID, battle.OpponentID} {
		_ = s.Notifier.Notify(uid, models.NotificationBattleStarted,
			"Battle started",
			"The battle is live. Cheers are open!",
			map[string]interface{}{"battle_id": battle.ID})
	}

	battle.Status = models.BattleStatusLive
	battle.StartTime = &now
	return c.JSON(fiber.Map{"message": "battle started", "battle": battle})
}

// FinishBattle is the participant-agreed early conclusion: a live battle is
// closed with the named winner without waiting for the autofinish worker.
func (s *BattleService) FinishBattle(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	id := c.Params("id")

	type Req struct {
		WinnerID string `json:"winner_id"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}

	var battle models.Battle
	if err := s.DB.First(&battle, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "battle not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	if !battle.IsParticipant(userID) {
		return c.Status(403).JSON(fiber.Map{"error": "only a participant can finish the battle"})
	}
	if !battle.IsParticipant(req.WinnerID) {
		return c.Status(400).JSON(fiber.Map{"error": "winner_id must be one of the battle participants"})
	}

	now := time.Now()
	result := s.DB.Model(&models.Battle{}).
		Where("id = ? AND status = ?", id, models.BattleStatusLive).
		Updates(map[string]interface{}{
			"status":    models.BattleStatusFinished,
			"end_time":  now,
			"winner_id": req.WinnerID,
		})
	if result.Error != nil {
		return c.Status(500).JSON(fiber.Map{"error": "finish failed"})
	}
	if result.RowsAffected == 0 {
		return c.Status(409).JSON(fiber.Map{"error": "battle is not live"})
	}

	for _, uid := range []string{battle.ChallengerID, battle.OpponentID} {
		_ = s.Notifier.Notify(uid, models.NotificationBattleFinished,
			"Battle finished",
			"The battle was concluded by the participants.",
			map[string]interface{}{"battle_id": battle.ID, "winner_id": req.WinnerID})
	}

	battle.Status = models.BattleStatusFinished
	battle.EndTime = &now
	battle.WinnerID = &req.WinnerID
	return c.JSON(fiber.Map{"message": "battle finished", "battle": battle})
}

// GetBattleStatus returns battle metadata with the tallies recomputed live
// from the cheer ledger (never cached on the battle row), aggregate pledge
// stats, and recent cheer events with supporter identity omitted.
func (s *BattleService) GetBattleStatus(c *fiber.Ctx) error {
	id := c.Params("id")

	var battle models.Battle
	if err := s.DB.First(&battle, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "battle not found"})
		}
		log.Printf("ERROR fetching battle %s: %v", id, err)
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}

	challengerPts, opponentPts, err := BattlePointTotals(s.DB, &battle)
	if err != nil {
		log.Printf("ERROR tallying battle %s: %v", id, err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to tally cheers"})
	}
	battle.ChallengerPoints = challengerPts
	battle.OpponentPoints = opponentPts

	var pledgeCount int64
	s.DB.Model(&models.Pledge{}).Where("battle_id = ?", id).Count(&pledgeCount)

	// Public view of recent cheers: supporter identity stays private.
	type RecentCheer struct {
		CreatorID string    `json:"creator_id"`
		Amount    int64     `json:"amount"`
		Mode      string    `json:"mode"`
		CreatedAt time.Time `json:"created_at"`
	}
	var recent []RecentCheer
	s.DB.Model(&models.Pledge{}).
		Select("creator_id, amount, mode, created_at").
		Where("battle_id = ?", id).
		Order("created_at DESC").
		Limit(10).
		Scan(&recent)

	return c.JSON(fiber.Map{
		"battle":            battle,
		"challenger_points": challengerPts,
		"opponent_points":   opponentPts,
		"pledge_count":      pledgeCount,
		"total_points":      challengerPts + opponentPts,
		"recent_cheers":     recent,
	})
}

// ListBattles returns a paginated battle listing with optional per-battle
// tallies. Open listings get a short public cache policy; "only mine" views
// get a private one.
func (s *BattleService) ListBattles(c *fiber.Ctx) error {
	status := c.Query("status")
	participant := c.Query("participant")
	mine := c.Query("mine") == "true"
	withPoints := c.Query("with_points") == "true"

	page, _ := strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	query := s.DB.Model(&models.Battle{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if participant != "" {
		query = query.Where("challenger_id = ? OR opponent_id = ?", participant, participant)
	}
	if mine {
		userID := c.Get("X-User-ID")
		if userID == "" {
			return c.Status(401).JSON(fiber.Map{"error": "mine=true requires auth context"})
		}
		query = query.Where("challenger_id = ? OR opponent_id = ?", userID, userID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to count battles"})
	}

	var battles []models.Battle
	if err := query.Order("requested_start_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&battles).Error; err != nil {
		log.Printf("ERROR fetching battles: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to fetch battles"})
	}

	if withPoints && len(battles) > 0 {
		ids := make([]string, 0, len(battles))
		for _, b := range battles {
			ids = append(ids, b.ID)
		}
		type tallyRow struct {
			BattleID  string
			CreatorID string
			Total     int64
		}
		var rows []tallyRow
		if err := s.DB.Model(&models.Pledge{}).
			Select("battle_id, creator_id, SUM(amount) AS total").
			Where("battle_id IN ?", ids).
			Group("battle_id, creator_id").
			Scan(&rows).Error; err != nil {
			return c.Status(500).JSON(fiber.Map{"error": "failed to tally cheers"})
		}
		totals := make(map[string]map[string]int64, len(battles))
		for _, r := range rows {
			if totals[r.BattleID] == nil {
				totals[r.BattleID] = make(map[string]int64)
			}
			totals[r.BattleID][r.CreatorID] = r.Total
		}
		for i := range battles {
			battles[i].ChallengerPoints = totals[battles[i].ID][battles[i].ChallengerID]
			battles[i].OpponentPoints = totals[battles[i].ID][battles[i].OpponentID]
		}
	}

	if mine {
		c.Set("Cache-Control", "private, max-age=5")
	} else {
		c.Set("Cache-Control", "public, max-age=15")
	}

	return c.JSON(fiber.Map{
		"battles": battles,
		"total":   total,
		"page":    page,
		"limit":   limit,
	})
}

// BattlePointTotals recomputes both tallies from the append-only cheer
// ledger. Aggregation is always live so a re-run or an audit reproduces the
// same totals.
func BattlePointTotals(db *gorm.DB, b *models.Battle) (int64, int64, error) {
	type tallyRow struct {
		CreatorID string
		Total     int64
	}
	var rows []tallyRow
	if err := db.Model(&models.Pledge{}).
		Select("creator_id, SUM(amount) AS total").
		Where("battle_id = ?", b.ID).
		Group("creator_id").
		Scan(&rows).Error; err != nil {
		return 0, 0, err
	}

	var challenger, opponent int64
	for _, r := range rows {
		switch r.CreatorID {
		case b.ChallengerID:
			challenger = r.Total
		case b.OpponentID:
			opponent = r.Total
		}
	}
	return challenger, opponent, nil
}
