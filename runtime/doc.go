// Package runtime provides the in-process actor runtime the orchestration
// runs on.
//
// Actors are registered by type with a Factory and addressed by ActorID
// (type plus key). Two delivery modes exist:
//
//   - SendMessage delivers to one actor and waits for its handler.
//   - PublishMessage enqueues to every actor subscribed to the topic type,
//     keyed by the topic source, and returns immediately.
//
// Publishing through the Host handed to a factory never delivers the message
// back to the publishing actor. Messages to one actor are handled strictly in
// arrival order; different actors run concurrently. Cancellation is carried by
// the context passed to each call and forwarded unchanged to the handler.
package runtime
