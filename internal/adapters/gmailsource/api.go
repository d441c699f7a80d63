package gmailsource

import (
	"context"
	"encoding/base64"
	"fmt"

	"google.golang.org/api/gmail/v1"
)

const user = "me"

// rawMessage is a message fetched in raw format
type rawMessage struct {
	ID           string
	InternalDate int64
	LabelIDs     []string
	Raw          []byte
}

// api is the subset of the Gmail API used by Source
type api interface {
	List(ctx context.Context, query, pageToken string) ([]string, string, error)
	GetRaw(ctx context.Context, id string) (rawMessage, error)
	Modify(ctx context.Context, id string, add, remove []string) error
	EnsureLabel(ctx context.Context, name string) (string, error)
}

// googleAPI adapts *gmail.Service to api
type googleAPI struct {
	svc *gmail.Service
}

func (g *googleAPI) List(ctx context.Context, query, pageToken string) ([]string, string, error) {
	call := g.svc.Users.Messages.List(user).Q(query).MaxResults(100)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	res, err := call.Context(ctx).Do()
	if err != nil {
		return nil, "", err
	}
	ids := make([]string, 0, len(res.Messages))
	for _, m := range res.Messages {
		ids = append(ids, m.Id)
	}
	return ids, res.NextPageToken, nil
}

func (g *googleAPI) GetRaw(ctx context.Context, id string) (rawMessage, error) {
	msg, err := g.svc.Users.Messages.Get(user, id).Format("raw").Context(ctx).Do()
	if err != nil {
		return rawMessage{}, err
	}
	raw, err := base64.URLEncoding.DecodeString(msg.Raw)
	if err != nil {
		// Gmail sometimes omits padding
		if raw, err = base64.RawURLEncoding.DecodeString(msg.Raw); err != nil {
			return rawMessage{}, fmt.Errorf("decoding raw message %s: %w", id, err)
		}
	}
	return rawMessage{
		ID:           msg.Id,
		InternalDate: msg.InternalDate,
		LabelIDs:     msg.LabelIds,
		Raw:          raw,
	}, nil
}

func (g *googleAPI) Modify(ctx context.Context, id string, add, remove []string) error {
	req := &gmail.ModifyMessageRequest{AddLabelIds: add, RemoveLabelIds: remove}
	_, err := g.svc.Users.Messages.Modify(user, id, req).Context(ctx).Do()
	return err
}

func (g *googleAPI) EnsureLabel(ctx context.Context, name string) (string, error) {
	lr, err := g.svc.Users.Labels.List(user).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	for _, l := range lr.Labels {
		if l.Name == name {
			return l.Id, nil
		}
	}
	created, err := g.svc.Users.Labels.Create(user, &gmail.Label{
		Name:                  name,
		MessageListVisibility: "show",
		LabelListVisibility:   "labelShow",
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("create label %q: %w", name, err)
	}
	return created.Id, nil
}
