package auth

import "context"

type contextKey struct{}

var subjectKey contextKey

// WithSubject 把认证主体写入上下文.
func WithSubject(ctx context.Context, subject Subject) context.Context {
	return context.WithValue(ctx, subjectKey, subject)
}

// SubjectFrom 读取上下文中的认证主体.
func SubjectFrom(ctx context.Context) (Subject, bool) {
	subject, ok := ctx.Value(subjectKey).(Subject)
	return subject, ok
}
