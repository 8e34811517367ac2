package dto

type CreateGroupRequest struct {
	Name        string  `json:"name" form:"name"`
	Description *string `json:"description" form:"description"`
}

type UpdateGroupRequest struct {
	Name        *string `json:"name" form:"name"`
	Description *string `json:"description" form:"description"`
}

type CreateChannelRequest struct {
	Name     string `json:"name" binding:"required"`
	Type     string `json:"type"`
	Topic    string `json:"topic"`
	Position int    `json:"position"`
}

type UpdateChannelRequest struct {
	Name     *string `json:"name"`
	Type     *string `json:"type"`
	Topic    *string `json:"topic"`
	Position *int    `json:"position"`
}

type UpdateMemberRequest struct {
	Nickname *string `json:"nickname"`
	Role     *string `json:"role"`
	IsMuted  *bool   `json:"is_muted"`
	IsBanned *bool   `json:"is_banned"`
}

type UpdateNicknameRequest struct {
	Nickname string `json:"nickname"`
}
