package presenter

import (
	"encoding/json"

	"github.com/johnquangdev/meetscribe/internal/adapter/dto/common"
	"github.com/johnquangdev/meetscribe/internal/adapter/dto/meeting"
	"github.com/johnquangdev/meetscribe/internal/domain/entities"
	meetingUsecase "github.com/johnquangdev/meetscribe/internal/usecase/meeting"
)

// ToMeetingResponse converts a Meeting entity to MeetingResponse DTO
func ToMeetingResponse(m *entities.Meeting) *meeting.MeetingResponse {
	if m == nil {
		return nil
	}
	return &meeting.MeetingResponse{
		ID:      m.ID.String(),
		Title:   m.Title,
		MeetURL: m.MeetURL,
		Status:  string(m.Status()),
		StartTS: m.StartTS,
		EndTS:   m.EndTS,
	}
}

// ToMeetingListResponse converts a slice of Meeting entities to MeetingListResponse
func ToMeetingListResponse(meetings []*entities.Meeting, total int64, page, pageSize int) *meeting.MeetingListResponse {
	items := make([]*meeting.MeetingResponse, len(meetings))
	for i, m := range meetings {
		items[i] = ToMeetingResponse(m)
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize != 0 {
		totalPages++
	}

	return &meeting.MeetingListResponse{
		Meetings: items,
		Pagination: &common.PaginationResponse{
			Page:       page,
			PageSize:   pageSize,
			TotalPages: totalPages,
			TotalItems: total,
		},
	}
}

// ToTranscriptResponse converts utterances to TranscriptResponse
func ToTranscriptResponse(meetingID string, utterances []*entities.Utterance) *meeting.TranscriptResponse {
	items := make([]*meeting.UtteranceResponse, len(utterances))
	for i, u := range utterances {
		items[i] = &meeting.UtteranceResponse{
			ID:           u.ID.String(),
			SpeakerLabel: u.SpeakerLabel,
			StartTimeMs:  u.StartTimeMs,
			EndTimeMs:    u.EndTimeMs,
			Text:         u.Text,
			Lang:         u.Lang,
			IsFinal:      u.IsFinal,
		}
	}
	return &meeting.TranscriptResponse{MeetingID: meetingID, Utterances: items}
}

// ToIngestSessionResponses converts session views to DTOs
func ToIngestSessionResponses(views []meetingUsecase.SessionView) []*meeting.IngestSessionResponse {
	out := make([]*meeting.IngestSessionResponse, len(views))
	for i, v := range views {
		s := v.Session

		// Parse init descriptor from JSON
		var init map[string]any
		if s.Init != nil {
			json.Unmarshal(s.Init, &init)
		}

		out[i] = &meeting.IngestSessionResponse{
			ID:             s.ID.String(),
			Remote:         s.Remote,
			Init:           init,
			TotalBytes:     s.TotalBytes,
			FramesReceived: s.FramesReceived,
			StartedAt:      s.StartedAt,
			LastMessageAt:  s.LastMessageAt,
			ClosedAt:       s.ClosedAt,
			CloseReason:    s.CloseReason,
			AudioURL:       v.AudioURL,
		}
	}
	return out
}
