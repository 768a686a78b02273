package notify

import "fmt"

// Render produces the subject and plain-text body for a notification.
// Templates match the emails the platform has always sent; links come from
// the dispatching service via Data.
func Render(n Notification) (subject, body string) {
	name := n.ToName
	if name == "" {
		name = "there"
	}

	switch n.Kind {
	case KindConnectionRequest:
		subject = "New connection request on MentorMesh"
		body = fmt.Sprintf(
			"Hello %s,\n\n%s would like to connect with you.\n\nAccept: %s\nDecline: %s\n\nBest regards,\nMentorMesh\n",
			name, n.Data["requester_name"], n.Data["accept_url"], n.Data["reject_url"],
		)
	case KindSessionBooked:
		subject = "New session request: " + n.Data["topic"]
		body = fmt.Sprintf(
			"Hello %s,\n\n%s has requested a session with you.\n\nTopic: %s\nDate: %s\nDuration: %s minutes\n\nAccept: %s\nDecline: %s\n\nBest regards,\nMentorMesh\n",
			name, n.Data["initiator_name"], n.Data["topic"], n.Data["date"], n.Data["duration"],
			n.Data["accept_url"], n.Data["reject_url"],
		)
	case KindSessionAccepted:
		subject = "Session confirmed: " + n.Data["topic"]
		body = fmt.Sprintf(
			"Hello %s,\n\nYour session has been confirmed.\n\nTopic: %s\nDate: %s\nMeeting link: %s\n\nBest regards,\nMentorMesh\n",
			name, n.Data["topic"], n.Data["date"], n.Data["room_link"],
		)
	case KindSessionRejected:
		subject = "Session declined: " + n.Data["topic"]
		body = fmt.Sprintf(
			"Hello %s,\n\nThe session request for %q on %s was declined.\n\nBest regards,\nMentorMesh\n",
			name, n.Data["topic"], n.Data["date"],
		)
	case KindSessionCancelled:
		subject = "Session cancelled: " + n.Data["topic"]
		body = fmt.Sprintf(
			"Hello %s,\n\nThe session %q on %s has been cancelled by %s.\n\nBest regards,\nMentorMesh\n",
			name, n.Data["topic"], n.Data["date"], n.Data["actor_name"],
		)
	case KindSessionCompleted:
		subject = "Session completed: " + n.Data["topic"]
		body = fmt.Sprintf(
			"Hello %s,\n\nYour session %q has been marked completed. You can now leave feedback for your counterpart.\n\nBest regards,\nMentorMesh\n",
			name, n.Data["topic"],
		)
	default:
		subject = "MentorMesh notification"
		body = fmt.Sprintf("Hello %s,\n\nYou have a new notification.\n\nBest regards,\nMentorMesh\n", name)
	}
	return subject, body
}
