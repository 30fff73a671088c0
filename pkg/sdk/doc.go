// Package ragchat is a Go client for the sport science research chat API.
//
// A session groups one conversation per persona. Each question goes through
// retrieval over the persona's vector index and returns a grounded answer
// with the filenames it drew on.
//
//	client, _ := ragchat.New("http://localhost:8080", ragchat.WithAPIKey("secret"))
//	sess, _ := client.Sessions().Create(ctx, "S-042")
//	turn, _ := client.Chat(sess.ID, "female-athlete").Ask(ctx, "What is RED-S?")
//	fmt.Println(turn.Answer, turn.Sources)
//
// Errors returned by the server map onto sentinels, so callers can use
// errors.Is(err, ragchat.ErrNoContext) and similar checks.
package ragchat
