package errors

// Convenience functions for common error patterns

// Config errors

func ConfigNotFound(path string) *PublishError {
	return New(CategoryConfig, SeverityFatal, "configuration file not found").
		WithContext("path", path)
}

func ConfigRequired(field string) *PublishError {
	return New(CategoryConfig, SeverityFatal, "required configuration missing").
		WithContext("field", field)
}

func ValidationFailed(field, reason string) *PublishError {
	return New(CategoryValidation, SeverityFatal, "validation failed").
		WithContext("field", field).
		WithContext("reason", reason)
}

// Pipeline stage errors

func CheckoutFailed(repo string, cause error) *PublishError {
	return Wrap(cause, CategoryGit, SeverityFatal, "source checkout failed").
		WithContext("repository", repo)
}

func ToolchainFailed(operation string, cause error) *PublishError {
	return Wrap(cause, CategoryToolchain, SeverityFatal, "toolchain provisioning failed").
		WithContext("operation", operation)
}

func RuntimeFailed(interpreter string, cause error) *PublishError {
	return Wrap(cause, CategoryRuntime, SeverityFatal, "runtime provisioning failed").
		WithContext("interpreter", interpreter)
}

func RenderFailed(document string, cause error) *PublishError {
	return Wrap(cause, CategoryRender, SeverityFatal, "document rendering failed").
		WithContext("document", document)
}

func PublishFailed(branch string, cause error) *PublishError {
	return Wrap(cause, CategoryPublish, SeverityFatal, "site publish failed").
		WithContext("branch", branch)
}

func WorkspaceError(operation string, cause error) *PublishError {
	return Wrap(cause, CategoryInternal, SeverityFatal, "workspace operation failed").
		WithContext("operation", operation)
}

// Git errors

func GitAuthError(repo string, cause error) *PublishError {
	return Wrap(cause, CategoryAuth, SeverityFatal, "git authentication failed").
		WithContext("repository", repo)
}

// Network errors

func DownloadError(url string, cause error) *PublishError {
	return Wrap(cause, CategoryNetwork, SeverityFatal, "download failed").
		WithContext("url", url)
}

// Daemon errors

func DaemonError(message string) *PublishError {
	return New(CategoryDaemon, SeverityError, message)
}

// Storage errors

func StorageError(operation string, cause error) *PublishError {
	return Wrap(cause, CategoryStorage, SeverityError, "event store operation failed").
		WithContext("operation", operation)
}

// Internal errors

func InternalError(message string, cause error) *PublishError {
	return Wrap(cause, CategoryInternal, SeverityFatal, message)
}
