package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// LoadAWSConfig resolves credentials the usual way for region.
func LoadAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("load AWS config: %w", err)
	}
	return cfg, nil
}

// EmailNotifier mails the person an event concerns: the master for new
// applications, the student for decisions.
type EmailNotifier struct {
	client SESService
	sender string
}

func NewEmailNotifier(cfg aws.Config, sender string) *EmailNotifier {
	return &EmailNotifier{client: ses.NewFromConfig(cfg), sender: sender}
}

func (n *EmailNotifier) Notify(ctx context.Context, event Event) error {
	to, subject, body, ok := emailFor(event)
	if !ok {
		return nil
	}
	_, err := n.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &sestypes.Destination{
			ToAddresses: []string{to},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(subject)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(n.sender),
	})
	return err
}

func emailFor(event Event) (to, subject, body string, ok bool) {
	title := event.Workshop.Title
	switch event.Kind {
	case ApplicationSubmitted:
		if event.Master == nil || event.Master.Email == "" {
			return "", "", "", false
		}
		who := "A student"
		if event.Student != nil && event.Student.Name != "" {
			who = event.Student.Name
		}
		return event.Master.Email,
			"New application for " + title,
			fmt.Sprintf("%s applied to %s. Review the application on your dashboard.", who, title),
			true
	case ApplicationApproved, ApplicationRejected:
		if event.Student == nil || event.Student.Email == "" {
			return "", "", "", false
		}
		verdict := "approved"
		if event.Kind == ApplicationRejected {
			verdict = "not accepted"
		}
		return event.Student.Email,
			"Your application for " + title,
			fmt.Sprintf("Your application for %s was %s.", title, verdict),
			true
	}
	return "", "", "", false
}

// TopicNotifier publishes every event as JSON to an SNS topic.
type TopicNotifier struct {
	client   SNSService
	topicARN string
}

func NewTopicNotifier(cfg aws.Config, topicARN string) *TopicNotifier {
	return &TopicNotifier{client: sns.NewFromConfig(cfg), topicARN: topicARN}
}

type topicMessage struct {
	Event         EventKind `json:"event"`
	WorkshopID    string    `json:"workshopId"`
	WorkshopTitle string    `json:"workshopTitle"`
	ApplicationID string    `json:"applicationId,omitempty"`
	StudentID     string    `json:"studentId,omitempty"`
	Status        string    `json:"status,omitempty"`
}

func (n *TopicNotifier) Notify(ctx context.Context, event Event) error {
	msg := topicMessage{
		Event:         event.Kind,
		WorkshopID:    event.Workshop.ID,
		WorkshopTitle: event.Workshop.Title,
	}
	if a := event.Application; a != nil {
		msg.ApplicationID = a.ID
		msg.StudentID = a.StudentID
		msg.Status = string(a.Status)
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	_, err = n.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicARN),
		Message:  aws.String(string(payload)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"event": {DataType: aws.String("String"), StringValue: aws.String(string(event.Kind))},
		},
	})
	return err
}
