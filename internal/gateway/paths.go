package gateway

// Operation names accepted by Client.Call. Each binds to one REST path
// on the upstream gateway; the table is checked at construction so a
// typo fails fast instead of surfacing as a 404 mid-pipeline.
const (
	OpProfile        = "profile"
	OpHeartBeat      = "heart_beat"
	OpTwiceLogin     = "twice_login"
	OpSendText       = "send_text"
	OpSendImage      = "send_image"
	OpRevoke         = "revoke"
	OpUserInfo       = "user_info"
	OpUserList       = "user_list"
	OpGroupMember    = "group_member"
	OpCDNImage       = "cdn_image"
	OpDownloadImage  = "download_image"
	OpDownloadFile   = "download_file"
	OpDownloadVideo  = "download_video"
	OpDownloadVoice  = "download_voice"
	OpDownloadEmoji  = "download_emoji"
	OpClaimRedPacket = "claim_red_packet"
)

var operationPaths = map[string]string{
	OpProfile:        "/User/GetContractProfile",
	OpHeartBeat:      "/Login/HeartBeat",
	OpTwiceLogin:     "/Login/LoginTwiceAutoAuth",
	OpSendText:       "/Msg/SendTxt",
	OpSendImage:      "/Msg/UploadImg",
	OpRevoke:         "/Msg/Revoke",
	OpUserInfo:       "/Friend/GetContractDetail",
	OpUserList:       "/Friend/GetContractList",
	OpGroupMember:    "/Group/GetChatRoomMemberDetail",
	OpCDNImage:       "/Tools/CdnDownloadImage",
	OpDownloadImage:  "/Tools/DownloadImg",
	OpDownloadFile:   "/Tools/DownloadFile",
	OpDownloadVideo:  "/Tools/DownloadVideo",
	OpDownloadVoice:  "/Tools/DownloadVoice",
	OpDownloadEmoji:  "/Tools/EmojiDownload",
	OpClaimRedPacket: "/TenPay/AutoHongBao",
}
