package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/bily-amin/habitica/internal/server/models"
)

const csvContentType = "text/csv"

// ExportChallengeMembers writes a members × tasks CSV to object storage and
// returns a temporary download URL.
func (s *ChallengeService) ExportChallengeMembers(ctx context.Context, actorID, challengeID string) (_ string, err error) {
	ctx, end := startSpan(ctx, "ChallengeService.ExportChallengeMembers", "challenge_id", challengeID)
	defer end(&err)

	v, err := s.loadChallenge(ctx, s.db, actorID, challengeID)
	if err != nil {
		return "", err
	}
	c := v.challenge

	memberIDs, err := s.repomanager.Members(s.db).ListUserIDs(ctx, c.ID)
	if err != nil {
		return "", err
	}
	members, err := s.repomanager.Users(s.db).ListByIDs(ctx, memberIDs)
	if err != nil {
		return "", err
	}
	taskRepo := s.repomanager.Tasks(s.db)
	templates, err := taskRepo.ListTemplates(ctx, c.ID)
	if err != nil {
		return "", err
	}
	mirrors, err := taskRepo.ListMirrors(ctx, c.ID)
	if err != nil {
		return "", err
	}

	body, err := membersCSV(c, members, templates, mirrors)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("challenges/%s/%s.csv", c.ID, s.newID())
	if err := s.store.Put(ctx, key, bytes.NewReader(body), csvContentType); err != nil {
		return "", err
	}
	url, err := s.store.PresignGet(ctx, key, s.exportTTL)
	if err != nil {
		return "", err
	}

	s.log.Info(ctx, "challenge exported", "challenge_id", c.ID, "members", len(members), "key", key)
	return url, nil
}

// membersCSV renders one row per member with, for every template task in
// tasks order, the member copy's completion, value and notes. Members that
// no longer hold a copy get empty cells.
func membersCSV(c *models.Challenge, members []*models.User, templates, mirrors []*models.Task) ([]byte, error) {
	byID := make(map[string]*models.Task, len(templates))
	for _, t := range templates {
		byID[t.ID] = t
	}
	order := make([]*models.Task, 0, len(templates))
	for _, id := range c.TasksOrder.All() {
		if t, ok := byID[id]; ok {
			order = append(order, t)
		}
	}

	copies := make(map[string]*models.Task, len(mirrors))
	for _, m := range mirrors {
		copies[m.UserID+"/"+m.Challenge.TaskID] = m
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"UUID", "name"}
	for _, t := range order {
		header = append(header, t.Text, t.Text+" (value)", t.Text+" (notes)")
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, u := range members {
		row := []string{u.ID, displayName(u)}
		for _, t := range order {
			m, ok := copies[u.ID+"/"+t.ID]
			if !ok {
				row = append(row, "", "", "")
				continue
			}
			row = append(row, strconv.FormatBool(m.Completed), strconv.FormatFloat(m.Value, 'f', -1, 64), m.Notes)
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
